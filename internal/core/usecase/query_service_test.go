package usecase

import (
	"context"
	"testing"

	"github.com/smartattend/auditlog/internal/core/domain"
)

func TestQueryForcesOwnedActorScope(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	repo.seedChain(2)
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	// A non-privileged requester asking for someone else's entries still gets
	// the filter rewritten to their own identity.
	_, err := svc.Query(ctx, domain.QueryFilter{ActorID: "user-8"}, domain.OwnedBy("user-7"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if repo.lastFilter.ActorID != "user-7" {
		t.Fatalf("ActorID passed to storage = %q, want the requester's identity", repo.lastFilter.ActorID)
	}
}

func TestQueryUnrestrictedKeepsFilter(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	_, err := svc.Query(ctx, domain.QueryFilter{ActorID: "user-8"}, domain.Unrestricted())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if repo.lastFilter.ActorID != "user-8" {
		t.Fatalf("unrestricted query rewrote ActorID to %q", repo.lastFilter.ActorID)
	}
}

func TestQueryNormalizesLimit(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	if _, err := svc.Query(ctx, domain.QueryFilter{Limit: 999999}, domain.Unrestricted()); err != nil {
		t.Fatalf("query: %v", err)
	}
	if repo.lastFilter.Limit != domain.MaxQueryLimit {
		t.Fatalf("Limit = %d, want clamp to %d", repo.lastFilter.Limit, domain.MaxQueryLimit)
	}

	if _, err := svc.Query(ctx, domain.QueryFilter{}, domain.Unrestricted()); err != nil {
		t.Fatalf("query: %v", err)
	}
	if repo.lastFilter.Limit != domain.DefaultQueryLimit {
		t.Fatalf("Limit = %d, want default %d", repo.lastFilter.Limit, domain.DefaultQueryLimit)
	}
}

func TestEmptyOwnerScopeNeverReachesStorage(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	entries := repo.seedChain(2)
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	// An identityless owned scope would erase the actor filter and expose
	// every actor's entries to a non-privileged requester.
	_, err := svc.Query(ctx, domain.QueryFilter{ActorID: "someone-else"}, domain.OwnedBy(""))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("query: got %v, want forbidden", err)
	}
	if repo.lastFilter.Limit != 0 {
		t.Fatal("query reached storage despite the rejected scope")
	}

	_, err = svc.GetByID(ctx, entries[0].ID, domain.OwnedBy(""))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("get: got %v, want forbidden", err)
	}

	_, err = svc.TrailFor(ctx, "user", "user-7", domain.OwnedBy(""))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("trail: got %v, want forbidden", err)
	}
}

func TestGetByIDHidesOtherActorsEntries(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	entries := repo.seedChain(1)
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	if _, err := svc.GetByID(ctx, entries[0].ID, domain.OwnedBy("user-7")); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}

	_, err := svc.GetByID(ctx, entries[0].ID, domain.OwnedBy("user-8"))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("got %v, want a forbidden error", err)
	}
}

func TestTrailForEntitlement(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	// The default rule entitles a user to their own user resource.
	if _, err := svc.TrailFor(ctx, "user", "user-7", domain.OwnedBy("user-7")); err != nil {
		t.Fatalf("own user trail: %v", err)
	}

	_, err := svc.TrailFor(ctx, "user", "user-8", domain.OwnedBy("user-7"))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("foreign user trail: got %v, want forbidden", err)
	}

	// Resource types without a declared rule default to not entitled.
	_, err = svc.TrailFor(ctx, "attendance_record", "rec-42", domain.OwnedBy("user-7"))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("undeclared resource type: got %v, want forbidden", err)
	}

	// Privileged requesters skip the entitlement check entirely.
	if _, err := svc.TrailFor(ctx, "attendance_record", "rec-42", domain.Unrestricted()); err != nil {
		t.Fatalf("privileged trail: %v", err)
	}
}

func TestTrailForReturnsFullHistoryOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	repo.seedChain(3)
	resolver := NewRuleOwnershipResolver()
	resolver.Register("attendance_record", func(_, _ string) bool { return true })
	svc := NewQueryService(repo, resolver)

	trail, err := svc.TrailFor(ctx, "attendance_record", "rec-42", domain.OwnedBy("user-9"))
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("trail length = %d, want 3", len(trail))
	}
	for i := 1; i < len(trail); i++ {
		if trail[i].Sequence < trail[i-1].Sequence {
			t.Fatal("trail is not oldest-first")
		}
	}
	// The trail covers all actors touching the resource, so the filter must
	// not be actor-scoped.
	if repo.lastFilter.ActorID != "" {
		t.Fatalf("trail filter actor-scoped to %q", repo.lastFilter.ActorID)
	}
	if !repo.lastFilter.Ascending {
		t.Fatal("trail filter not ascending")
	}
	if repo.lastFilter.Limit != domain.MaxQueryLimit {
		t.Fatalf("trail limit = %d, want %d", repo.lastFilter.Limit, domain.MaxQueryLimit)
	}
}

func TestTrailForPagesBeyondSingleRead(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	repo.seedChain(domain.MaxQueryLimit + 1)
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	// A history longer than one read must come back whole, not truncated at
	// the per-query cap.
	trail, err := svc.TrailFor(ctx, "attendance_record", "rec-42", domain.Unrestricted())
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != domain.MaxQueryLimit+1 {
		t.Fatalf("trail length = %d, want %d", len(trail), domain.MaxQueryLimit+1)
	}
	if got := trail[len(trail)-1].Sequence; got != int64(domain.MaxQueryLimit+1) {
		t.Fatalf("last sequence = %d, want %d", got, domain.MaxQueryLimit+1)
	}
	if repo.lastFilter.Offset != domain.MaxQueryLimit {
		t.Fatalf("final page offset = %d, want %d", repo.lastFilter.Offset, domain.MaxQueryLimit)
	}
}

func TestSearchJustificationGuards(t *testing.T) {
	ctx := context.Background()
	repo := &stubAuditRepo{}
	svc := NewQueryService(repo, NewRuleOwnershipResolver())

	_, err := svc.SearchJustification(ctx, "", "policy change", 10, domain.OwnedBy("user-7"))
	if domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("non-privileged search: got %v, want forbidden", err)
	}

	_, err = svc.SearchJustification(ctx, "", "   ", 10, domain.Unrestricted())
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("blank text: got %v, want validation error", err)
	}

	if _, err := svc.SearchJustification(ctx, "tenant-a", "policy change", 999999, domain.Unrestricted()); err != nil {
		t.Fatalf("search: %v", err)
	}
	if repo.lastSearchLimit != domain.MaxQueryLimit {
		t.Fatalf("search limit = %d, want clamp to %d", repo.lastSearchLimit, domain.MaxQueryLimit)
	}
	if repo.lastSearchTenant != "tenant-a" || repo.lastSearchText != "policy change" {
		t.Fatalf("search args = (%q, %q)", repo.lastSearchTenant, repo.lastSearchText)
	}
}
