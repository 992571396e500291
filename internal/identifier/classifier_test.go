package identifier

import (
	"errors"
	"strings"
	"testing"

	"github.com/yourorg/bookinglean/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.IdentifierKind
	}{
		{"owner@salon.com", domain.IdentifierEmail},
		{"  Maria@Client.COM  ", domain.IdentifierEmail},
		{"011.222.333-44", domain.IdentifierNationalID},
		{"01122233344", domain.IdentifierNationalID},
		{"12 345 678", domain.IdentifierNationalID},
	}
	for _, c := range cases {
		got, err := Classify(c.raw)
		if err != nil {
			t.Fatalf("Classify(%q) failed: %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestClassifyEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		if _, err := Classify(raw); !errors.Is(err, domain.ErrEmptyIdentifier) {
			t.Errorf("Classify(%q) = %v, want ErrEmptyIdentifier", raw, err)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Maria@Client.COM ", domain.IdentifierEmail); got != "maria@client.com" {
		t.Errorf("email normalize = %q", got)
	}
	if got := Normalize(" 011.222.333-44 ", domain.IdentifierNationalID); got != "011.222.333-44" {
		t.Errorf("national id normalize = %q", got)
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("011.222.333-44"); got != "01122233344" {
		t.Errorf("Digits = %q", got)
	}
}

func TestMaskEmailNeverRevealsLocalPart(t *testing.T) {
	masked := Mask("maria@client.com", domain.IdentifierEmail)
	if strings.Contains(masked, "maria") || strings.Contains(masked, "client") {
		t.Fatalf("mask leaked identifier: %q", masked)
	}
	if !strings.HasPrefix(masked, "m") || !strings.Contains(masked, "@c") {
		t.Errorf("mask should keep first runes for recognition: %q", masked)
	}
}

func TestMaskNationalIDKeepsOnlyTail(t *testing.T) {
	masked := Mask("011.222.333-44", domain.IdentifierNationalID)
	if !strings.HasSuffix(masked, "44") {
		t.Errorf("mask should keep trailing digits: %q", masked)
	}
	if strings.Contains(masked, "011") || strings.Contains(masked, "222") {
		t.Errorf("mask leaked digits: %q", masked)
	}
}
