package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const fcmScope = "https://www.googleapis.com/auth/firebase.messaging"

// FCMSender delivers push notifications through the FCM HTTP v1 API.
type FCMSender struct {
	client    *resty.Client
	projectID string
}

// NewFCMSender authenticates with the service account in
// cfg.CredentialsFile.
func NewFCMSender(ctx context.Context, cfg FCMConfig) (*FCMSender, error) {
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("fcm: read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, raw, fcmScope)
	if err != nil {
		return nil, fmt.Errorf("fcm: parse credentials: %w", err)
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = creds.ProjectID
	}
	return NewFCMSenderWithTokenSource(ctx, cfg, creds.TokenSource), nil
}

// NewFCMSenderWithTokenSource uses ts for bearer tokens.
func NewFCMSenderWithTokenSource(ctx context.Context, cfg FCMConfig, ts oauth2.TokenSource) *FCMSender {
	base := cfg.BaseURL
	if base == "" {
		base = "https://fcm.googleapis.com"
	}
	client := resty.NewWithClient(oauth2.NewClient(ctx, ts)).
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &FCMSender{client: client, projectID: cfg.ProjectID}
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Android      fcmAndroid        `json:"android"`
	APNS         fcmAPNS           `json:"apns"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmAndroid struct {
	Priority     string `json:"priority"`
	Notification struct {
		Sound     string `json:"sound"`
		ChannelID string `json:"channel_id"`
	} `json:"notification"`
}

type fcmAPNS struct {
	Payload struct {
		APS struct {
			Sound string `json:"sound"`
			Badge int    `json:"badge"`
		} `json:"aps"`
	} `json:"payload"`
}

type fcmError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func (e fcmError) unregistered() bool {
	if e.Error.Status == "NOT_FOUND" {
		return true
	}
	for _, d := range e.Error.Details {
		if d.ErrorCode == "UNREGISTERED" {
			return true
		}
	}
	return false
}

func (s *FCMSender) SendPush(ctx context.Context, token string, msg Message) error {
	title := msg.Title
	if title == "" {
		title = "Emergency Blood Request"
	}
	body := msg.Body
	if body == "" {
		body = msg.BloodGroup + " blood needed urgently"
	}

	m := fcmMessage{
		Token:        token,
		Notification: fcmNotification{Title: title, Body: body},
		Data: map[string]string{
			"type":              "emergency",
			"emergencyId":       msg.EmergencyID,
			"bloodGroup":        msg.BloodGroup,
			"urgency":           msg.Urgency,
			"hospitalName":      msg.HospitalName,
			"hospitalBedNumber": msg.BedNumber,
		},
	}
	m.Android.Priority = "normal"
	if msg.HighPriority {
		m.Android.Priority = "high"
	}
	m.Android.Notification.Sound = "default"
	m.Android.Notification.ChannelID = "emergency"
	m.APNS.Payload.APS.Sound = "default"
	m.APNS.Payload.APS.Badge = 1

	var apiErr fcmError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(fcmRequest{Message: m}).
		SetError(&apiErr).
		Post("/v1/projects/" + s.projectID + "/messages:send")
	if err != nil {
		return fmt.Errorf("fcm: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	if resp.StatusCode() == http.StatusNotFound || apiErr.unregistered() {
		return ErrInvalidToken
	}
	if resp.StatusCode() == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Error.Message), "registration token") {
		return ErrInvalidToken
	}
	if err := classify("fcm", resp); !errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: fcm: %s %s", ErrPermanent, apiErr.Error.Status, apiErr.Error.Message)
}
