package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/chimesdkmeetings"
	"github.com/google/uuid"

	"github.com/soyeahso/sharkchat/internal/logging"
)

type chimeAPI interface {
	CreateMeeting(ctx context.Context, params *chimesdkmeetings.CreateMeetingInput, optFns ...func(*chimesdkmeetings.Options)) (*chimesdkmeetings.CreateMeetingOutput, error)
	CreateAttendee(ctx context.Context, params *chimesdkmeetings.CreateAttendeeInput, optFns ...func(*chimesdkmeetings.Options)) (*chimesdkmeetings.CreateAttendeeOutput, error)
	DeleteMeeting(ctx context.Context, params *chimesdkmeetings.DeleteMeetingInput, optFns ...func(*chimesdkmeetings.Options)) (*chimesdkmeetings.DeleteMeetingOutput, error)
}

// Provisioner creates one Chime SDK meeting per call with the caller as its
// first attendee. The agent joins the same meeting from the contact center.
type Provisioner struct {
	api         chimeAPI
	mediaRegion string
	newID       func() string
	log         *logging.Logger
}

var _ Setup = (*Provisioner)(nil)

// NewProvisioner creates a provisioner over a Chime SDK meetings client.
func NewProvisioner(api chimeAPI, mediaRegion string, log *logging.Logger) *Provisioner {
	return &Provisioner{
		api:         api,
		mediaRegion: mediaRegion,
		newID:       func() string { return uuid.New().String() },
		log:         log.Sub("meeting"),
	}
}

// NewProvisionerFromConfig creates a provisioner using the AWS SDK.
func NewProvisionerFromConfig(awsCfg aws.Config, mediaRegion string, log *logging.Logger) *Provisioner {
	if mediaRegion == "" {
		mediaRegion = awsCfg.Region
	}
	return NewProvisioner(chimesdkmeetings.NewFromConfig(awsCfg), mediaRegion, log)
}

// Setup creates the meeting and the caller's attendee. A meeting whose
// attendee cannot be created is deleted again.
func (p *Provisioner) Setup(ctx context.Context, attrs Attributes) (ConnectionData, error) {
	attrs = attrs.WithDefaults()
	id := p.newID()

	mtg, err := p.api.CreateMeeting(ctx, &chimesdkmeetings.CreateMeetingInput{
		ClientRequestToken: aws.String(id),
		ExternalMeetingId:  aws.String(externalID("sharkchat-", id)),
		MediaRegion:        aws.String(p.mediaRegion),
	})
	if err != nil {
		return ConnectionData{}, fmt.Errorf("creating meeting: %w", err)
	}
	if mtg.Meeting == nil || mtg.Meeting.MeetingId == nil {
		return ConnectionData{}, ErrInvalidConnectionData
	}
	meetingID := aws.ToString(mtg.Meeting.MeetingId)

	att, err := p.api.CreateAttendee(ctx, &chimesdkmeetings.CreateAttendeeInput{
		MeetingId:      aws.String(meetingID),
		ExternalUserId: aws.String(externalID("caller-", attrs.UserPhone+"-"+id)),
	})
	if err != nil || att.Attendee == nil {
		if _, derr := p.api.DeleteMeeting(ctx, &chimesdkmeetings.DeleteMeetingInput{MeetingId: aws.String(meetingID)}); derr != nil {
			p.log.Warn().Err(derr).Str("meeting", meetingID).Msg("deleting orphaned meeting failed")
		}
		if err != nil {
			return ConnectionData{}, fmt.Errorf("creating attendee: %w", err)
		}
		return ConnectionData{}, ErrInvalidConnectionData
	}

	meetingJSON, err := json.Marshal(mtg.Meeting)
	if err != nil {
		return ConnectionData{}, fmt.Errorf("encoding meeting: %w", err)
	}
	attendeeJSON, err := json.Marshal(att.Attendee)
	if err != nil {
		return ConnectionData{}, fmt.Errorf("encoding attendee: %w", err)
	}

	p.log.Info().
		Str("meeting", meetingID).
		Str("caller", attrs.UserName).
		Msg("meeting provisioned")

	return ConnectionData{Meeting: meetingJSON, Attendee: attendeeJSON}, nil
}

// externalID builds a Chime external identifier: 2-64 characters from a
// restricted set.
func externalID(prefix, s string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '+':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}
