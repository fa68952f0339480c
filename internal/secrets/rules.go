package secrets

// DefaultRules returns rules for credentials that show up in collaboration
// tools. Self-identifying prefixes need no keyword.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "slack-token", Pattern: `xox[abposr]-[A-Za-z0-9\-]{10,}`, Severity: "high"},
		{ID: "slack-webhook", Pattern: `https://hooks\.slack\.com/services/[A-Za-z0-9/]+`, Severity: "high"},
		{ID: "github-token", Pattern: `(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36}`, Severity: "high"},
		{ID: "github-fine-grained", Pattern: `github_pat_[A-Za-z0-9_]{22,}`, Severity: "high"},
		{ID: "gitlab-token", Pattern: `glpat-[A-Za-z0-9\-]{20,}`, Severity: "high"},
		{ID: "linear-api-key", Pattern: `lin_api_[A-Za-z0-9]{32,}`, Severity: "high"},
		{ID: "asana-pat", Pattern: `\b[0-9]/[0-9]{10,}:[a-f0-9]{32}\b`, Severity: "high"},
		{ID: "meta-access-token", Pattern: `EAA[A-Za-z0-9]{60,}`, Severity: "high"},
		{ID: "stripe-key", Pattern: `(?:sk|rk|pk)_(?:live|test)_[A-Za-z0-9]{24,}`, Severity: "high"},
		{ID: "aws-access-key-id", Pattern: `\b(?:AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`, Severity: "high"},
		{ID: "google-api-key", Pattern: `AIza[A-Za-z0-9_\-]{35}`, Severity: "high"},
		{ID: "jwt", Pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`, Severity: "medium"},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`, Severity: "high"},
		{
			ID:       "connection-url",
			Pattern:  `(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s]+:[^@\s]+@\S+`,
			Severity: "high",
		},
		{
			ID:       "generic-api-key",
			Pattern:  `(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords: []string{"key"},
			Severity: "high",
		},
		{
			ID:       "password-assignment",
			Pattern:  `(?i)(?:password|passwd|pwd|secret)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords: []string{"pass", "pwd", "secret"},
			Severity: "high",
		},
		{
			ID:       "bearer-token",
			Pattern:  `(?i)bearer\s+[A-Za-z0-9_\-\.=]{20,}`,
			Keywords: []string{"bearer"},
			Severity: "medium",
		},
	}
}
