package pipeline

// Degraded reasons. A run ending with one of these still succeeded at the
// transport level; the reason tells the client why the result is partial.
const (
	ReasonUnusableProfile = "unusable_profile"
	ReasonNoListings      = "no_listings"
	ReasonUnranked        = "ranking_unavailable"
)

// degradedMessages are the client-facing explanations, in the
// application's language.
var degradedMessages = map[string]string{
	ReasonUnusableProfile: "Votre profil ne contient ni métier recherché ni compétences. " +
		"Complétez le formulaire, ou envisagez un bilan de compétences pour définir vos pistes.",
	ReasonNoListings: "Aucune offre trouvée pour cette recherche. " +
		"Essayez d'élargir la recherche ou de changer de ville.",
	ReasonUnranked: "Les offres n'ont pas pu être classées par pertinence ; " +
		"elles sont présentées dans leur ordre d'arrivée.",
}

// DegradedMessage returns the explanation for a reason, or empty.
func DegradedMessage(reason string) string {
	return degradedMessages[reason]
}
