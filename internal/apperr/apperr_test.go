package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := NotFound("no items for this topic")
	wrapped := fmt.Errorf("start session: %w", base)

	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected not_found, got %s", KindOf(wrapped))
	}
	if HTTPStatus(wrapped) != http.StatusNotFound {
		t.Errorf("expected 404, got %d", HTTPStatus(wrapped))
	}
	if PublicMessage(wrapped) != "no items for this topic" {
		t.Errorf("unexpected public message %q", PublicMessage(wrapped))
	}
}

func TestInternalDetailNotLeaked(t *testing.T) {
	err := Persistence("insert session score", errors.New("pq: relation does not exist"))

	if got := PublicMessage(err); got != "could not complete operation" {
		t.Errorf("expected generic message, got %q", got)
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", HTTPStatus(err))
	}
	if PublicMessage(errors.New("boom")) != "could not complete operation" {
		t.Error("plain errors must map to the generic message")
	}
}

func TestUpstreamStatus(t *testing.T) {
	err := Upstream("oracle call failed", errors.New("timeout"))
	if HTTPStatus(err) != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", HTTPStatus(err))
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected Unwrap to expose the cause")
	}
}
