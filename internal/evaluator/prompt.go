// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evaluator

import (
	"fmt"
	"strings"

	"github.com/0x0BSoD/melabel/internal/model"
)

const systemPrompt = "You are a medical writer with deep knowledge of cancer research. " +
	"Score papers for how valuable they are to cancer patients and their families, " +
	"and reply with a single JSON object only."

const rubricTemplate = `Rate, on a scale of 0 to 5, how valuable the paper below is for cancer patients and their families, then write an easy-to-read Japanese title and a one-paragraph Japanese summary.

Criteria:
1. It is clinical research on humans.
2. It reports outcomes that matter in daily life, such as treatment effect or prognosis.
3. The cancer type is clearly identified.
4. It widens treatment options or improves quality of life.

Paper:
Title: %s
Abstract: %s
Journal: %s

Tag every field below using ONLY the values listed for it. Never invent a value.
- cancer_types (one or more): %s
- treatment_outcomes (zero or more): %s
- research_stage (exactly one): %s
- japan_availability (exactly one): %s
- patient_keywords (zero or more): %s
- difficulty_level (exactly one): %s
- cancer_specificity (exactly one): %s

Reply with this JSON shape:
{
  "score": 4.5,
  "shouldPublish": true,
  "reason": "short rationale for the score",
  "summary": "one-paragraph summary in Japanese",
  "title_simplified": "plain-language Japanese title",
  "keywords": ["cancer type", "treatment", "clinical trial"],
  "cancer_types": ["lung_cancer"],
  "treatment_outcomes": ["survival_improvement"],
  "research_stage": "clinical_trial_phase3",
  "japan_availability": "clinical_trial",
  "patient_keywords": ["immunotherapy"],
  "difficulty_level": "intermediate",
  "cancer_specificity": "specific"
}`

// BuildPrompt renders the rubric for one paper, enumerating every legal tag value.
func BuildPrompt(paper model.Paper) string {
	return fmt.Sprintf(rubricTemplate,
		paper.Title,
		paper.Abstract,
		paper.Journal,
		enumerate(CancerTypes),
		enumerate(TreatmentOutcomes),
		enumerate(ResearchStages),
		enumerate(JapanAvailability),
		enumerate(PatientKeywords),
		enumerate(DifficultyLevels),
		enumerate(CancerSpecificity),
	)
}

func enumerate(v Vocabulary) string {
	return strings.Join(v.Values(), ", ")
}
