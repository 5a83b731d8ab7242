package app

import (
	"math"
	"strings"
)

/********** name normalization **********/

// Arabic fragments seen in provider feeds, mapped to their Latin forms.
// Applied before lowercasing so mixed-script names compare cleanly.
var arabicLatin = map[string]string{
	"الهلتون":  "hilton",
	"ماريوت":   "marriott",
	"سويسوتيل": "swissotel",
	"بولمان":   "pullman",
	"فندق":     "hotel",
	"مكة":      "makkah",
	"مكه":      "makkah",
	"المدينة":  "madinah",
	"المنورة":  "madinah",
}

var namePrefixes = []string{"hotel ", "the ", "al "}

var nameSuffixes = []string{" hotel", " makkah", " mecca", " madinah", " medina"}

// NormalizeName produces the key used to compare hotel names across
// providers and scripts: transliterate, lowercase, strip honorifics and
// city boilerplate, collapse whitespace and punctuation.
func NormalizeName(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	for ar, lat := range arabicLatin {
		s = strings.ReplaceAll(s, ar, lat)
	}
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")

	for _, p := range namePrefixes {
		s = strings.TrimPrefix(s, p)
	}
	for _, suf := range nameSuffixes {
		s = strings.TrimSuffix(s, suf)
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r == '-', r == '&':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// NameSimilarity returns 0..1 for two already-normalized names. Token
// overlap catches reordered words ("makkah hilton" vs "hilton makkah");
// edit distance catches truncations ("conv." vs "convention"). The higher
// of the two wins.
func NameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	j := tokenOverlap(a, b)
	l := levenshteinRatio(a, b)
	return math.Max(j, l)
}

func tokenOverlap(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		set[t] = struct{}{}
	}
	union := len(set)
	inter := 0
	for _, t := range tb {
		if _, ok := set[t]; ok {
			inter++
			delete(set, t) // count each shared token once
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func levenshteinRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	dist := prev[lb]
	longer := la
	if lb > la {
		longer = lb
	}
	return 1 - float64(dist)/float64(longer)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

/********** geo **********/

const earthRadiusM = 6371000

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
