package tenantstate

import "testing"

func TestConfigRoundTrip(t *testing.T) {
	s := New()
	if s.HasConfig(1) {
		t.Fatalf("expected no config initially")
	}
	s.SetConfig(1, &UserConfig{APIKey: "sk-a"})
	if !s.HasConfig(1) {
		t.Fatalf("expected config after set")
	}
	if got := s.GetConfig(1); got == nil || got.APIKey != "sk-a" {
		t.Fatalf("unexpected config: %#v", got)
	}
	s.DeleteConfig(1)
	if s.HasConfig(1) {
		t.Fatalf("expected config deleted")
	}
}

func TestEnsureSessionDefaults(t *testing.T) {
	s := New()
	sess := s.EnsureSession(7)
	if sess.DocumentsLoaded {
		t.Fatalf("expected fresh session to default documents_loaded=false")
	}
	s.SetDocumentsLoaded(7, true)
	if !s.EnsureSession(7).DocumentsLoaded {
		t.Fatalf("expected documents_loaded=true after set")
	}
}

func TestVerificationCodeConsumedOnce(t *testing.T) {
	s := New()
	s.SetVerificationCode("a@x", "123456")
	if !s.VerifyCode("a@x", "123456") {
		t.Fatalf("expected matching code to verify")
	}
	if s.VerifyCode("a@x", "123456") {
		t.Fatalf("expected code to be consumed after first verify")
	}
}

func TestVerificationCodeWrongCodeStillConsumes(t *testing.T) {
	s := New()
	s.SetVerificationCode("a@x", "123456")
	if s.VerifyCode("a@x", "000000") {
		t.Fatalf("expected mismatched code to fail")
	}
	if s.VerifyCode("a@x", "123456") {
		t.Fatalf("expected code to be consumed regardless of match")
	}
}
