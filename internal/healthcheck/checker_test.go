package healthcheck

import (
	"context"
	"testing"
)

type testChecker struct {
	items []CheckResult
}

func (c *testChecker) ListChecks(ctx context.Context) []CheckResult {
	return c.items
}

func TestCollectSkipsNil(t *testing.T) {
	t.Parallel()

	items := Collect(context.Background(),
		&testChecker{items: []CheckResult{{ID: "a", Status: StatusOK}}},
		nil,
		&testChecker{items: []CheckResult{{ID: "b", Status: StatusWarn}, {ID: "c", Status: StatusOK}}},
	)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestOverall(t *testing.T) {
	t.Parallel()

	cases := []struct {
		statuses []string
		want     string
	}{
		{statuses: nil, want: StatusOK},
		{statuses: []string{StatusOK, StatusOK}, want: StatusOK},
		{statuses: []string{StatusOK, StatusWarn}, want: StatusWarn},
		{statuses: []string{StatusWarn, StatusError, StatusOK}, want: StatusError},
	}
	for _, tc := range cases {
		items := make([]CheckResult, 0, len(tc.statuses))
		for _, s := range tc.statuses {
			items = append(items, CheckResult{Status: s})
		}
		if got := Overall(items); got != tc.want {
			t.Fatalf("Overall(%v) = %s, want %s", tc.statuses, got, tc.want)
		}
	}
}
