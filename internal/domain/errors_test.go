package domain_test

import (
	"strings"
	"testing"

	"github.com/viczenith/estatecore/internal/domain"
)

func TestSlugConflictError_Message(t *testing.T) {
	err := &domain.SlugConflictError{Slug: "acme"}
	if got := err.Error(); !strings.Contains(got, "acme") {
		t.Errorf("message should name the slug: %q", got)
	}
}

func TestInvalidAPIKeyError_Message(t *testing.T) {
	bare := &domain.InvalidAPIKeyError{}
	if bare.Error() != "invalid api key" {
		t.Errorf("bare message = %q", bare.Error())
	}

	reasoned := &domain.InvalidAPIKeyError{Reason: "unknown key"}
	if !strings.Contains(reasoned.Error(), "unknown key") {
		t.Errorf("reasoned message = %q", reasoned.Error())
	}
}

func TestTransitionError_Message(t *testing.T) {
	err := &domain.TransitionError{Event: domain.EventGraceLapsed, Current: domain.StatusTrial}
	got := err.Error()
	if !strings.Contains(got, string(domain.EventGraceLapsed)) || !strings.Contains(got, string(domain.StatusTrial)) {
		t.Errorf("message should name event and state: %q", got)
	}
}
