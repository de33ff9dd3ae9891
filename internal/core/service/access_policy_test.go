package service

import (
	"context"
	"errors"
	"testing"

	"github.com/esig/task-manager/internal/core/domain"
)

func TestAccessPolicy_CanAccess(t *testing.T) {
	ap := NewAccessPolicy(newStubAccountRepo())
	alice := &domain.Principal{AccountID: "a", Username: "alice", Role: domain.RoleUser}
	bob := &domain.Principal{AccountID: "b", Username: "bob", Role: domain.RoleUser}
	admin := &domain.Principal{AccountID: "z", Username: "root", Role: domain.RoleAdmin}

	alicesTask := &domain.Task{ID: "t1", OwnerID: "a"}
	bobsTask := &domain.Task{ID: "t2", OwnerID: "b"}

	cases := []struct {
		name string
		p    *domain.Principal
		task *domain.Task
		want bool
	}{
		{"owner", alice, alicesTask, true},
		{"other user", alice, bobsTask, false},
		{"other owner", bob, alicesTask, false},
		{"admin on alice", admin, alicesTask, true},
		{"admin on bob", admin, bobsTask, true},
		{"nil principal", nil, alicesTask, false},
		{"nil task", alice, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ap.CanAccess(tc.p, tc.task); got != tc.want {
				t.Fatalf("CanAccess = %v, want %v", got, tc.want)
			}
			err := ap.Authorize(tc.p, tc.task)
			if tc.want && err != nil {
				t.Fatalf("Authorize returned %v", err)
			}
			if !tc.want && !errors.Is(err, domain.ErrForbidden) {
				t.Fatalf("Authorize: expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestAccessPolicy_ScopeForList(t *testing.T) {
	ap := NewAccessPolicy(newStubAccountRepo())

	if s := ap.ScopeForList(&domain.Principal{AccountID: "z", Role: domain.RoleAdmin}); !s.All {
		t.Fatalf("admin scope should be unrestricted: %+v", s)
	}
	s := ap.ScopeForList(&domain.Principal{AccountID: "a", Role: domain.RoleUser})
	if s.All || s.OwnerID != "a" {
		t.Fatalf("user scope should be restricted to own id: %+v", s)
	}
	if s := ap.ScopeForList(nil); s.Admits("a") || s.Admits("") {
		t.Fatalf("nil principal scope must admit nothing: %+v", s)
	}
}

func TestAccessPolicy_ResolveTargetOwner(t *testing.T) {
	repo := newStubAccountRepo()
	admin := repo.add("root", domain.RoleAdmin)
	alice := repo.add("alice", domain.RoleUser)
	bob := repo.add("bob", domain.RoleUser)
	ap := NewAccessPolicy(repo)
	ctx := context.Background()

	ptr := func(s string) *string { return &s }

	t.Run("admin names existing owner", func(t *testing.T) {
		got, err := ap.ResolveTargetOwner(ctx, admin, ptr(bob.AccountID), admin.AccountID)
		if err != nil || got != bob.AccountID {
			t.Fatalf("got (%q, %v), want (%q, nil)", got, err, bob.AccountID)
		}
	})
	t.Run("admin names unknown owner", func(t *testing.T) {
		if _, err := ap.ResolveTargetOwner(ctx, admin, ptr("missing"), admin.AccountID); !errors.Is(err, domain.ErrUnknownOwner) {
			t.Fatalf("expected ErrUnknownOwner, got %v", err)
		}
	})
	t.Run("admin without owner keeps fallback", func(t *testing.T) {
		got, err := ap.ResolveTargetOwner(ctx, admin, nil, alice.AccountID)
		if err != nil || got != alice.AccountID {
			t.Fatalf("got (%q, %v)", got, err)
		}
	})
	t.Run("user naming someone else is ignored", func(t *testing.T) {
		got, err := ap.ResolveTargetOwner(ctx, alice, ptr(bob.AccountID), alice.AccountID)
		if err != nil || got != alice.AccountID {
			t.Fatalf("got (%q, %v), want caller", got, err)
		}
	})
	t.Run("user naming unknown owner is ignored", func(t *testing.T) {
		got, err := ap.ResolveTargetOwner(ctx, alice, ptr("missing"), alice.AccountID)
		if err != nil || got != alice.AccountID {
			t.Fatalf("got (%q, %v), want caller", got, err)
		}
	})
}
