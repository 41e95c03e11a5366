package limiter

import (
	"testing"

	"github.com/murmurchat/realtime/internal/testutil"
)

func TestBurstExhaustion(t *testing.T) {
	t.Parallel()

	lim := New(Options{Rate: 1, Burst: 3})

	for n := 0; n < 3; n++ {
		testutil.Assert(t, true, lim.Allow("c1"), "within burst")
	}

	testutil.Assert(t, false, lim.Allow("c1"), "burst exhausted")
}

func TestBucketsAreIndependent(t *testing.T) {
	t.Parallel()

	lim := New(Options{Rate: 1, Burst: 1})

	testutil.Assert(t, true, lim.Allow("c1"), "first command")
	testutil.Assert(t, false, lim.Allow("c1"), "c1 throttled")
	testutil.Assert(t, true, lim.Allow("c2"), "c2 unaffected")
}

func TestForgetResetsBucket(t *testing.T) {
	t.Parallel()

	lim := New(Options{Rate: 1, Burst: 1})

	lim.Allow("c1")
	testutil.Assert(t, false, lim.Allow("c1"), "throttled")

	// A reconnect starts with a fresh bucket.
	lim.Forget("c1")
	testutil.Assert(t, true, lim.Allow("c1"), "fresh after forget")
}
