package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/murmurchat/realtime/internal/testutil"
)

func TestErrorString(t *testing.T) {
	t.Parallel()

	err := ErrNotFound()
	testutil.Assert(t, "70404 Not Found", err.Error(), "code and message")

	err = ErrNotFound().SetDetail("Unknown Identity %s", "u1")
	testutil.Assert(t, "70404 Not Found: Unknown Identity u1", err.Error(), "formatted detail appended")
}

func TestEachCallIsFresh(t *testing.T) {
	t.Parallel()

	a := ErrInvalidRequest().SetDetail("first")
	b := ErrInvalidRequest()

	// The constructors must not share state between call sites.
	testutil.Assert(t, "70400 Invalid Request: first", a.Error(), "detail on a")
	testutil.Assert(t, "70400 Invalid Request", b.Error(), "b unaffected")
}

func TestFields(t *testing.T) {
	t.Parallel()

	err := ErrNotAuthorized().SetFields(Fields{"conversation_id": "conv1"})
	testutil.Assert(t, "conv1", err.GetFields()["conversation_id"].(string), "fields retrievable")
}

func TestFrom(t *testing.T) {
	t.Parallel()

	testutil.Assert(t, true, From(nil) == nil, "nil stays nil")

	orig := ErrRateLimited()
	testutil.Assert(t, orig, From(orig), "api errors pass through")

	wrapped := From(fmt.Errorf("dial tcp: refused"))
	testutil.Assert(t, 70500, wrapped.Code(), "foreign errors become internal")
	testutil.Assert(t, "70500 Internal Server Error: dial tcp: refused", wrapped.Error(), "cause in detail")
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("disk full")
	err := ErrPersistenceFailed().WithError(cause)

	testutil.Assert(t, true, stderrors.Is(err, cause), "cause reachable through Unwrap")
}

func TestCode(t *testing.T) {
	t.Parallel()

	testutil.Assert(t, 70403, Code(ErrNotAuthorized()), "api error code")
	testutil.Assert(t, 0, Code(fmt.Errorf("plain")), "plain errors have no code")
	testutil.Assert(t, 0, Code(nil), "nil has no code")
}
