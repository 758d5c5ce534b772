package keys

import (
	"strings"
	"testing"
)

func TestDerivedKeys(t *testing.T) {
	pool := Pool("admin-1", "rides")
	cases := map[string]string{
		pool:                            "pool/admin-1/rides",
		Policy(pool, "alice"):           "policy/pool/admin-1/rides/alice",
		Claim(pool, "c-1"):              "claim/pool/admin-1/rides/c-1",
		Vote(Claim(pool, "c-1"), "val"): "vote/claim/pool/admin-1/rides/c-1/val",
		Validator("val"):                "validator/val",
		Wallet("alice"):                 "wallet/alice",
		PoolVault(pool):                 "pool-vault/pool/admin-1/rides",
		ValidatorVault("val"):           "val-vault/val",
		ClaimPrefix(pool):               "claim/pool/admin-1/rides/",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
	if !strings.HasPrefix(Claim(pool, "c-1"), ClaimPrefix(pool)) {
		t.Fatalf("claim key must share the pool claim prefix")
	}
	if Kind(Vote(Claim(pool, "c-1"), "val")) != KindVote {
		t.Fatalf("unexpected kind")
	}
}

func TestValidIdentity(t *testing.T) {
	for _, bad := range []string{"", "a/b", "with space", strings.Repeat("x", MaxIdentityLen+1)} {
		if ValidIdentity(bad) == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if err := ValidIdentity("worker-7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSplitPool(t *testing.T) {
	admin, id, ok := SplitPool(Pool("adm", "rides"))
	if !ok || admin != "adm" || id != "rides" {
		t.Fatalf("unexpected split: %q %q %v", admin, id, ok)
	}
	for _, bad := range []string{"", "pool/adm", "claim/adm/rides", "pool//rides", Claim(Pool("a", "b"), "c")} {
		if _, _, ok := SplitPool(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
