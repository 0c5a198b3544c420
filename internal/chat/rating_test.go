package chat

import (
	"context"
	"errors"
	"testing"
)

func TestSaveRatingValidatesRange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for _, value := range []int{0, 6, -1} {
		if err := svc.SaveRating(ctx, 100, value, ""); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d: got %v, want ErrInvalidRating", value, err)
		}
	}
}

func TestSaveCommentRequiresRating(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if err := svc.SaveComment(ctx, 100, "nice chat"); !errors.Is(err, ErrNoRating) {
		t.Fatalf("got %v, want ErrNoRating", err)
	}
}

func TestCommentKeepsScore(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if err := svc.SaveRating(ctx, 100, 5, ""); err != nil {
		t.Fatalf("save rating: %v", err)
	}
	if err := svc.SaveComment(ctx, 100, "very helpful"); err != nil {
		t.Fatalf("save comment: %v", err)
	}

	r, err := svc.Rating(ctx, 100)
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if r.Rating != 5 {
		t.Errorf("score=%d after comment, want 5", r.Rating)
	}
	if r.Comment != "very helpful" {
		t.Errorf("comment=%q, want %q", r.Comment, "very helpful")
	}
}

func TestReRatingReplaces(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if err := svc.SaveRating(ctx, 100, 2, "slow"); err != nil {
		t.Fatalf("save rating: %v", err)
	}
	if err := svc.SaveRating(ctx, 100, 4, "better now"); err != nil {
		t.Fatalf("re-rate: %v", err)
	}

	r, err := svc.Rating(ctx, 100)
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if r.Rating != 4 || r.Comment != "better now" {
		t.Errorf("got %d %q, want 4 %q", r.Rating, r.Comment, "better now")
	}
}

func TestRatingMissing(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.Rating(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
