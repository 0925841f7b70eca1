package runner

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// RedirectError is returned by the client's redirect policy when a redirect
// chain cannot be followed.
type RedirectError struct {
	Redirects int
	Reason    string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect error after %d redirects: %s", e.Redirects, e.Reason)
}

// Classify maps a transport error to its FailureKind. It never fails.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, context.Canceled) {
		return FailureCancelled
	}
	if isTimeout(err) {
		return FailureTimeout
	}
	if isConnection(err) {
		if strings.Contains(err.Error(), "SSL") || isTLS(err) {
			return FailureSSL
		}
		return FailureConnection
	}
	if isRedirect(err) {
		return FailureRedirect
	}
	return FailureOther
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnection(err error) bool {
	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	return isTLS(err)
}

// isTLS matches handshake and certificate failures. Go's TLS stack never
// says "SSL", so the text match alone would miss them. An alert sent by the
// server arrives as a "remote error" OpError around an unexported type.
func isTLS(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "remote error" {
		return true
	}
	if strings.Contains(err.Error(), "tls: ") {
		return true
	}

	var (
		verifyErr  *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

func isRedirect(err error) bool {
	var redirectErr *RedirectError
	if errors.As(err, &redirectErr) {
		return true
	}
	// net/http reports an unparsable Location header without a typed error
	return strings.Contains(err.Error(), "Location header")
}
