package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
)

func TestKindMatching(t *testing.T) {
	err := E(KindNotFound, "store.GetTrade", sql.ErrNoRows)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found match")
	}
	if errors.Is(err, ErrInvalid) {
		t.Fatalf("not found must not match invalid")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected cause to stay reachable")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("KindOf(wrapped) = %s", KindOf(wrapped))
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("plain errors must be internal")
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{E(KindInvalid, "parse sort", errors.New("unknown column")), "parse sort: unknown column"},
		{Errorf(KindUpstream, "", "status %d", 502), "status 502"},
		{&Error{Op: "oracle", Kind: KindConfig}, "oracle: config"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}
