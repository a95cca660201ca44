package whatsapp

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // Twilio signs webhooks with HMAC-SHA1
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/Idosegev23/finhealer/internal/common"
)

// Inbound is a message received on the webhook.
type Inbound struct {
	MessageSID  string
	From        string // normalized E.164 digits
	To          string
	Body        string
	ProfileName string
	NumMedia    int
}

// ParseInbound reads a Twilio webhook form. A payload without a sender or
// without any content is a validation error.
func ParseInbound(form url.Values) (Inbound, error) {
	rawFrom := form.Get("From")
	if rawFrom == "" {
		return Inbound{}, common.Validationf("webhook payload has no From")
	}
	from, err := NormalizePhone(rawFrom)
	if err != nil {
		return Inbound{}, err
	}

	in := Inbound{
		MessageSID:  form.Get("MessageSid"),
		From:        from,
		Body:        strings.TrimSpace(form.Get("Body")),
		ProfileName: form.Get("ProfileName"),
	}
	if to := form.Get("To"); to != "" {
		if n, err := NormalizePhone(to); err == nil {
			in.To = n
		}
	}
	if n := form.Get("NumMedia"); n != "" {
		in.NumMedia, _ = strconv.Atoi(n)
	}

	if in.Body == "" && in.NumMedia == 0 {
		return Inbound{}, common.Validationf("webhook payload has no Body")
	}
	return in, nil
}

// ValidSignature checks the X-Twilio-Signature header: base64 HMAC-SHA1 of
// the full request URL followed by every form key and value in key order.
func ValidSignature(authToken, requestURL string, form url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	expected := Sign(authToken, requestURL, form)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the signature Twilio sends for a webhook request.
func Sign(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
