package main

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type recordingStore struct {
	email, hash string
}

func (r *recordingStore) Upsert(_ context.Context, email, hash string) (string, error) {
	r.email, r.hash = email, hash
	return "u-1", nil
}

func TestRunHashesPassword(t *testing.T) {
	store := &recordingStore{}
	id, err := run(context.Background(), store, "owner@clinic.in", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "u-1" || store.email != "owner@clinic.in" {
		t.Fatalf("unexpected upsert %q %q", id, store.email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(store.hash), []byte("correct-horse")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
}

func TestRunValidatesInput(t *testing.T) {
	if _, err := run(context.Background(), &recordingStore{}, "", "correct-horse"); err == nil {
		t.Fatalf("expected email requirement")
	}
	if _, err := run(context.Background(), &recordingStore{}, "owner@clinic.in", "short"); err == nil {
		t.Fatalf("expected password length requirement")
	}
}
