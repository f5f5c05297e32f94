// internal/api/auth.go
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	HeaderCaller    = "X-Caller"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"

	// MaxClockSkew bounds how old or how far in the future a signed request may be.
	MaxClockSkew = 5 * time.Minute
	maxBodyBytes = 1 << 20
)

var (
	errMissingCaller = errors.New("missing caller headers")
	errBadSignature  = errors.New("signature does not match caller")
	errStaleRequest  = errors.New("request timestamp outside allowed skew")
	errBodyTooLarge  = fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
)

type callerKey struct{}

// SigningPayload is the message a caller signs:
// METHOD " " PATH "\n" TIMESTAMP "\n" BODY.
func SigningPayload(method, path string, timestamp int64, body []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(method)
	buf.WriteByte(' ')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.WriteString(strconv.FormatInt(timestamp, 10))
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

// SignRequest sets the caller headers on req. Mainly a client and test helper.
func SignRequest(req *http.Request, key solana.PrivateKey, body []byte, now time.Time) error {
	ts := now.Unix()
	sig, err := key.Sign(SigningPayload(req.Method, req.URL.Path, ts, body))
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}
	req.Header.Set(HeaderCaller, key.PublicKey().String())
	req.Header.Set(HeaderSignature, sig.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	return nil
}

// requireSignature authenticates the caller of a mutating request. The body
// is buffered for verification and restored for the handler.
func (h *Handlers) requireSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		caller, err := h.verify(r)
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		if err != nil {
			h.logger.Debug("Request authentication failed", zapRequest(r, err)...)
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func (h *Handlers) verify(r *http.Request) (solana.PublicKey, error) {
	callerHdr := r.Header.Get(HeaderCaller)
	sigHdr := r.Header.Get(HeaderSignature)
	tsHdr := r.Header.Get(HeaderTimestamp)
	if callerHdr == "" || sigHdr == "" || tsHdr == "" {
		return solana.PublicKey{}, errMissingCaller
	}

	caller, err := solana.PublicKeyFromBase58(callerHdr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid caller: %w", err)
	}
	sig, err := solana.SignatureFromBase58(sigHdr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid signature: %w", err)
	}
	ts, err := strconv.ParseInt(tsHdr, 10, 64)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	skew := h.now().Sub(time.Unix(ts, 0))
	if skew > MaxClockSkew || skew < -MaxClockSkew {
		return solana.PublicKey{}, errStaleRequest
	}

	body, err := io.ReadAll(r.Body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return solana.PublicKey{}, errBodyTooLarge
	}
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to read body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if !sig.Verify(caller, SigningPayload(r.Method, r.URL.Path, ts, body)) {
		return solana.PublicKey{}, errBadSignature
	}
	return caller, nil
}

func callerFrom(ctx context.Context) solana.PublicKey {
	caller, _ := ctx.Value(callerKey{}).(solana.PublicKey)
	return caller
}
