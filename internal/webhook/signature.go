package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/iurnickita/pixrecon/internal/errs"
)

var ErrBadSignature = errs.Mark(errs.New("webhook signature mismatch"), errs.ErrUnauthorized)

// VerifySignature checks an x-signature header of the form
// "ts=1704908010,v1=<hex hmac-sha256>" signed over "id:<data.id>;ts:<ts>;".
func VerifySignature(secret, header, paymentID string) error {
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return errs.Wrap(ErrBadSignature, "x-signature header incomplete")
	}

	got, err := hex.DecodeString(v1)
	if err != nil {
		return errs.Wrap(ErrBadSignature, "v1 is not hex")
	}
	if !hmac.Equal(got, Sign(secret, paymentID, ts)) {
		return ErrBadSignature
	}
	return nil
}

func Sign(secret, paymentID, ts string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("id:" + paymentID + ";ts:" + ts + ";"))
	return mac.Sum(nil)
}
