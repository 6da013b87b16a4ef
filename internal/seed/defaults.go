package seed

import "github.com/halvard/muninn/internal/models"

// defaultFiles is the fallback list compiled into the binary. It
// mirrors the corpus layout at release time and keeps discovery,
// listing, and search usable before the first successful listing fetch.
// Run the sync command to refresh a file-backed copy from live data.
var defaultFiles = map[models.Category][]string{
	models.CategoryRisk: {
		"ri-1_prompt-injection.md",
		"ri-2_data-leakage.md",
		"ri-3_harmful-content.md",
		"ri-4_hallucination.md",
		"ri-5_model-theft.md",
		"ri-6_training-data-poisoning.md",
		"ri-7_overreliance.md",
		"ri-8_privacy-violation.md",
		"ri-9_bias-amplification.md",
		"ri-10_supply-chain.md",
	},
	models.CategoryMitigation: {
		"mi-1_input-validation.md",
		"mi-2_output-filtering.md",
		"mi-3_human-oversight.md",
		"mi-4_access-controls.md",
		"mi-5_red-teaming.md",
		"mi-6_monitoring.md",
		"mi-7_data-minimization.md",
		"mi-8_incident-response.md",
	},
	models.CategoryFramework: {
		"fw-1_nist-ai-rmf.md",
		"fw-2_eu-ai-act.md",
		"fw-3_iso-42001.md",
		"fw-4_soc2.md",
	},
}
