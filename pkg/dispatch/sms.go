package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	client *resty.Client
	cfg    TwilioConfig
}

func NewTwilioSender(cfg TwilioConfig) *TwilioSender {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.twilio.com"
	}
	client := resty.New().
		SetBaseURL(base).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &TwilioSender{client: client, cfg: cfg}
}

func (s *TwilioSender) SendSMS(ctx context.Context, phone, text string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   phone,
			"From": s.cfg.FromNumber,
			"Body": text,
		}).
		Post("/2010-04-01/Accounts/" + s.cfg.AccountSID + "/Messages.json")
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	if resp.IsError() {
		return classify("twilio", resp)
	}
	return nil
}

// MSG91Sender sends SMS through the MSG91 v2 API, used for Indian numbers.
type MSG91Sender struct {
	client *resty.Client
	cfg    MSG91Config
}

func NewMSG91Sender(cfg MSG91Config) *MSG91Sender {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.msg91.com"
	}
	client := resty.New().
		SetBaseURL(base).
		SetHeader("authkey", cfg.AuthKey).
		SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &MSG91Sender{client: client, cfg: cfg}
}

type msg91Request struct {
	Sender  string         `json:"sender"`
	Route   string         `json:"route"`
	Country string         `json:"country"`
	SMS     []msg91Message `json:"sms"`
}

type msg91Message struct {
	Message string   `json:"message"`
	To      []string `json:"to"`
}

type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *MSG91Sender) SendSMS(ctx context.Context, phone, text string) error {
	country := s.cfg.Country
	if country == "" {
		country = "91"
	}
	local := strings.TrimPrefix(phone, "+"+country)

	var out msg91Response
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(msg91Request{
			Sender:  s.cfg.SenderID,
			Route:   s.cfg.Route,
			Country: country,
			SMS:     []msg91Message{{Message: text, To: []string{local}}},
		}).
		SetResult(&out).
		Post("/api/v2/sendsms")
	if err != nil {
		return fmt.Errorf("msg91: %w", err)
	}
	if resp.IsError() {
		return classify("msg91", resp)
	}
	if out.Type == "error" {
		return fmt.Errorf("msg91: %s", out.Message)
	}
	return nil
}
