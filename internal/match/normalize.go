package match

import "strings"

// noiseTokens are quality tags, site droppings and generic terms that users
// paste along with a title and that carry no matching signal.
var noiseTokens = map[string]bool{
	"480p":     true,
	"720p":     true,
	"1080p":    true,
	"2160p":    true,
	"4k":       true,
	"hd":       true,
	"fhd":      true,
	"uhd":      true,
	"hdrip":    true,
	"webrip":   true,
	"webdl":    true,
	"web-dl":   true,
	"bluray":   true,
	"brrip":    true,
	"camrip":   true,
	"dvdrip":   true,
	"x264":     true,
	"x265":     true,
	"hevc":     true,
	"mkv":      true,
	"mp4":      true,
	"full":     true,
	"movie":    true,
	"film":     true,
	"download": true,
	"link":     true,
	"print":    true,
	"watch":    true,
	"online":   true,
	"free":     true,
}

// NormalizeTitle canonicalizes a catalog title: lowercase with collapsed
// whitespace. Titles are stored and matched in this form only.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// NormalizeQuery prepares free-form user text for the resolution engine:
// lowercase, trimmed, delimiter-split to drop trailing noise, noise tokens
// and @handle suffixes removed, whitespace collapsed.
func NormalizeQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))

	// Users paste things like "jawan | 720p hdrip" or "leo - full movie";
	// everything after the first delimiter is noise.
	if idx := strings.IndexAny(q, "|"); idx >= 0 {
		q = q[:idx]
	}
	if idx := strings.Index(q, " - "); idx >= 0 {
		q = q[:idx]
	}

	fields := strings.Fields(q)
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "@") {
			continue
		}
		if noiseTokens[f] {
			continue
		}
		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}

// stripSpaces removes all whitespace from s
func stripSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
