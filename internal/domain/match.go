package domain

import "strings"

// normalizeKey reduce una clave (casa de apuestas, sport key) para
// comparaciones sin sensibilidad a mayúsculas ni espacios sueltos.
func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTeam reduce un nombre de equipo a minúsculas alfanuméricas con
// espacios simples, para comparar entre feeds que no comparten formato.
func NormalizeTeam(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// SameTeam informa si dos nombres refieren al mismo equipo. Polymarket usa
// apodos cortos ("Lakers") y el feed de odds nombres completos
// ("Los Angeles Lakers"): además de la igualdad normalizada se acepta que
// un nombre termine en el otro, con un mínimo de longitud para no casar
// tokens sueltos tipo "FC".
func SameTeam(a, b string) bool {
	na, nb := NormalizeTeam(a), NormalizeTeam(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if len(na) >= 4 && strings.HasSuffix(nb, na) {
		return true
	}
	if len(nb) >= 4 && strings.HasSuffix(na, nb) {
		return true
	}
	return false
}
