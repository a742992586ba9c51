// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evaluator

import (
	"strings"

	"github.com/samber/lo"

	"github.com/0x0BSoD/melabel/internal/model"
)

// Term is one legal tag value together with the label shown to readers.
type Term struct {
	Value string
	Label string
}

type Vocabulary []Term

func (v Vocabulary) Values() []string {
	return lo.Map(v, func(t Term, _ int) string { return t.Value })
}

func (v Vocabulary) Contains(value string) bool {
	return lo.ContainsBy(v, func(t Term) bool { return t.Value == value })
}

// Keep returns the values that belong to the vocabulary, normalised and deduplicated.
func (v Vocabulary) Keep(values []string) []string {
	kept := lo.Filter(lo.Map(values, func(s string, _ int) string { return normalize(s) }), func(s string, _ int) bool {
		return v.Contains(s)
	})
	return lo.Uniq(kept)
}

// One returns value if it is legal, otherwise fallback.
func (v Vocabulary) One(value, fallback string) string {
	if value = normalize(value); v.Contains(value) {
		return value
	}
	return fallback
}

func (v Vocabulary) Label(value string) string {
	if t, ok := lo.Find(v, func(t Term) bool { return t.Value == value }); ok {
		return t.Label
	}
	return value
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
}

var CancerTypes = Vocabulary{
	{"lung_cancer", "肺がん"},
	{"breast_cancer", "乳がん"},
	{"colorectal_cancer", "大腸がん"},
	{"stomach_cancer", "胃がん"},
	{"liver_cancer", "肝がん"},
	{"pancreatic_cancer", "膵がん"},
	{"prostate_cancer", "前立腺がん"},
	{"ovarian_cancer", "卵巣がん"},
	{"cervical_cancer", "子宮頸がん"},
	{"endometrial_cancer", "子宮体がん"},
	{"bladder_cancer", "膀胱がん"},
	{"kidney_cancer", "腎がん"},
	{"thyroid_cancer", "甲状腺がん"},
	{"brain_tumor", "脳腫瘍"},
	{"bone_cancer", "骨がん"},
	{"leukemia", "白血病"},
	{"lymphoma", "リンパ腫"},
	{"multiple_myeloma", "多発性骨髄腫"},
	{"skin_cancer", "皮膚がん"},
	{"other", "その他"},
}

var TreatmentOutcomes = Vocabulary{
	{"survival_improvement", "生存率向上"},
	{"symptom_relief", "症状緩和"},
	{"qol_improvement", "QOL向上"},
	{"side_effect_reduction", "副作用軽減"},
	{"progression_delay", "進行抑制"},
	{"early_detection", "早期発見"},
}

var ResearchStages = Vocabulary{
	{"clinical_trial_phase1", "臨床試験（第1相）"},
	{"clinical_trial_phase2", "臨床試験（第2相）"},
	{"clinical_trial_phase3", "臨床試験（第3相）"},
	{"basic_research", "基礎研究"},
	{"observational_study", "観察研究"},
	{"meta_analysis", "メタ解析"},
}

var JapanAvailability = Vocabulary{
	{"available", "利用可能・保険適用含む"},
	{"clinical_trial", "臨床試験中・治験参加可能"},
	{"approval_pending", "承認申請中・薬事申請済み"},
	{"under_review", "審査中・規制当局審査中"},
	{"not_approved", "未承認・日本未導入"},
	{"unknown", "不明・情報不足"},
}

var DifficultyLevels = Vocabulary{
	{string(model.DifficultyBeginner), "基礎レベル"},
	{string(model.DifficultyIntermediate), "中級レベル"},
	{string(model.DifficultyAdvanced), "専門レベル"},
}

var CancerSpecificity = Vocabulary{
	{"specific", "特定がん種限定"},
	{"pan_cancer", "複数がん種共通"},
	{"general", "がん全般"},
}

var PatientKeywords = Vocabulary{
	{"new_drug", "新薬"},
	{"side_effects", "副作用"},
	{"survival_rate", "生存率"},
	{"quality_of_life", "生活の質"},
	{"clinical_trial", "臨床試験"},
	{"immunotherapy", "免疫療法"},
	{"chemotherapy", "化学療法"},
	{"radiation_therapy", "放射線療法"},
	{"surgery", "手術"},
	{"targeted_therapy", "分子標的療法"},
	{"precision_medicine", "精密医療"},
	{"biomarker", "バイオマーカー"},
}
