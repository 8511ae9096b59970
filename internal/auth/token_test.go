package auth

import (
	"testing"
	"time"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	token, err := Mint("secret", "u1", "ana", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Verify("secret", token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("UserID = %q, want u1", claims.UserID)
	}
	if claims.Username != "ana" {
		t.Fatalf("Username = %q, want ana", claims.Username)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := Mint("secret", "u1", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify("other", token); err == nil {
		t.Fatal("Verify accepted token signed with a different secret")
	}
}

func TestVerifyExpired(t *testing.T) {
	token, err := Mint("secret", "u1", "", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify("secret", token); err == nil {
		t.Fatal("Verify accepted expired token")
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := Verify("secret", "not-a-token"); err == nil {
		t.Fatal("Verify accepted garbage")
	}
}
