package services

import "strings"

// Advisory texts. One temperature band message is always emitted, followed by
// keyword advisories in the fixed order rain, snow, clear.
const (
	adviceExtremeHeat = "Extreme heat! Stay indoors during peak hours, hydrate with electrolyte drinks, use SPF 30+, and wear loose, breathable layers."
	adviceHot         = "Hot weather - choose lightweight, moisture-wicking fabrics and stay hydrated."
	adviceCold        = "Cold weather - layer up: base, insulating mid-layer, and waterproof shell. Cover head, hands, feet to stay warm."
	adviceMild        = "Mild but cool - layer a light sweater or jacket, especially in the morning and evening."
	adviceGeneric     = "Comfortable weather - light layers are enough."
	adviceRain        = "Carry an umbrella or wear a waterproof outer layer."
	adviceSnow        = "Be cautious - wear boots with good grip and watch for icy surfaces."
	adviceSunny       = "Sunny and clear - use sunglasses and apply sunscreen."
)

// Advise maps a temperature and condition text to human-readable advice
// strings. Bands are checked most-extreme first; temperatures in (0,10) and
// [20,30) have no dedicated band and deliberately fall through to the
// generic message. Keyword matches are case-insensitive substring checks.
func Advise(tempC float64, condition string) []string {
	var advice []string

	switch {
	case tempC >= 40:
		advice = append(advice, adviceExtremeHeat)
	case tempC >= 30:
		advice = append(advice, adviceHot)
	case tempC <= 0:
		advice = append(advice, adviceCold)
	case tempC >= 10 && tempC < 20:
		advice = append(advice, adviceMild)
	default:
		advice = append(advice, adviceGeneric)
	}

	lower := strings.ToLower(condition)
	if strings.Contains(lower, "rain") {
		advice = append(advice, adviceRain)
	}
	if strings.Contains(lower, "snow") {
		advice = append(advice, adviceSnow)
	}
	if strings.Contains(lower, "clear") && tempC > 25 {
		advice = append(advice, adviceSunny)
	}

	return advice
}
