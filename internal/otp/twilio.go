package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"messenger-service/internal/config"
)

// PhoneVerifier sends and checks verification codes against a phone number.
type PhoneVerifier interface {
	SendVerification(ctx context.Context, phone string) error
	CheckVerification(ctx context.Context, phone, code string) (bool, error)
}

// TwilioVerifier talks to the Twilio Verify REST API.
type TwilioVerifier struct {
	accountSID string
	authToken  string
	serviceSID string
	client     *http.Client
}

// NewTwilioVerifier reads credentials from the environment.
func NewTwilioVerifier() *TwilioVerifier {
	return &TwilioVerifier{
		accountSID: config.GetEnv("TWILIO_ACCOUNT_SID", ""),
		authToken:  config.GetEnv("TWILIO_AUTH_TOKEN", ""),
		serviceSID: config.GetEnv("TWILIO_SERVICE_SID", ""),
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TwilioVerifier) endpoint(path string) string {
	return fmt.Sprintf("https://verify.twilio.com/v2/Services/%s/%s", t.serviceSID, path)
}

func (t *TwilioVerifier) post(ctx context.Context, endpoint string, form url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("twilio verify: unexpected status %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

// SendVerification asks Twilio to deliver a code over SMS.
func (t *TwilioVerifier) SendVerification(ctx context.Context, phone string) error {
	form := url.Values{"To": {phone}, "Channel": {"sms"}}
	_, err := t.post(ctx, t.endpoint("Verifications"), form)
	return err
}

// CheckVerification submits the user's code for approval.
func (t *TwilioVerifier) CheckVerification(ctx context.Context, phone, code string) (bool, error) {
	form := url.Values{"To": {phone}, "Code": {code}}
	body, err := t.post(ctx, t.endpoint("VerificationCheck"), form)
	if err != nil {
		return false, err
	}
	status, _ := body["status"].(string)
	return status == "approved", nil
}
