package auth

import (
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	token, err := SignJWT("alice", "s3cret", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	name, err := ParseJWT(token, "s3cret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if name != "alice" {
		t.Fatalf("subject = %q, want alice", name)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := SignJWT("alice", "s3cret", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	if _, err := ParseJWT(token, "other"); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := SignJWT("alice", "s3cret", -time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	if _, err := ParseJWT(token, "s3cret"); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseJWT("not.a.token", "s3cret"); err != ErrInvalidToken {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
