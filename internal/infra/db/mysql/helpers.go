package mysql

import (
	"strings"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// splitList splits a comma-joined read-model column into values.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitRiskStates(s string) []domain.RiskState {
	parts := splitList(s)
	if len(parts) == 0 {
		return nil
	}
	out := make([]domain.RiskState, 0, len(parts))
	for _, p := range parts {
		out = append(out, domain.RiskState(p))
	}
	return out
}
