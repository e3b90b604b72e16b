package features

// Domains used by the simple schema. These tables are lenient: they accept
// free-text synonyms collected from field surveys and default instead of
// leaving a gap.
var (
	simpleFrequency = &Domain{
		Name:    "frequency",
		Members: []string{"never", "rarely", "sometimes", "often"},
		Rules: []SynonymRule{
			{Member: "never", Triggers: []string{"none", "0"}},
			{Member: "rarely", Triggers: []string{"seldom", "occasionally"}},
			// "occasionally" is also listed here but rarely wins.
			{Member: "sometimes", Triggers: []string{"occasionally", "moderate"}},
			{Member: "often", Triggers: []string{"frequently", "regularly", "always"}},
		},
		Fallback:      "never",
		ColumnDefault: "never",
	}
	simpleFertilizerType = &Domain{
		Name:    "fertilizer_type",
		Members: []string{"organic", "non-organic"},
		Rules: []SynonymRule{
			{Member: "organic", Triggers: []string{"natural"}},
			{Member: "non-organic", Triggers: []string{"synthetic", "chemical", "nonorganic", "inorganic"}},
		},
		Fallback:      "none",
		ColumnDefault: "none",
	}
	simplePesticideType = &Domain{
		Name:    "pesticide_type",
		Members: []string{"organic", "non-organic"},
		Rules: []SynonymRule{
			{Member: "organic", Triggers: []string{"natural", "bio"}},
			{Member: "non-organic", Triggers: []string{"synthetic", "chemical", "conventional"}},
		},
		Fallback:      "none",
		ColumnDefault: "none",
	}
)

// Domains used by the extended schema. These match the training-time
// cleaner exactly: no free-text synonyms, unmatched values become unknown.
var (
	extendedFrequency = &Domain{
		Name:    "frequency",
		Members: []string{"never", "rarely", "sometimes", "often"},
		Rules: []SynonymRule{
			{Member: "often", Prefix: true},
			{Member: "sometimes", Prefix: true},
			{Member: "rarely", Prefix: true},
			{Member: "never", Prefix: true},
		},
		ColumnDefault: "unknown",
	}
	extendedType = &Domain{
		Name:    "type",
		Members: []string{"organic", "non-organic"},
		Rules: []SynonymRule{
			{Member: "non-organic", Triggers: []string{"nonorganic"}},
			{Member: "organic"},
		},
		ColumnDefault: "unknown",
	}
	extendedYesNo = &Domain{
		Name:    "yes_no",
		Members: []string{"yes", "no"},
		Rules: []SynonymRule{
			{Member: "yes", Triggers: []string{"true", "1"}},
			{Member: "no", Triggers: []string{"false", "0"}},
		},
		ColumnDefault: "unknown",
	}
	floodRisk = &Domain{
		Name:          "flood_risk",
		Members:       []string{"none", "low", "medium", "high", "severe"},
		Rules:         exactRules("none", "low", "medium", "high", "severe"),
		ColumnDefault: "none",
	}
	beanScreen = &Domain{
		Name:          "bean_screen",
		Members:       []string{"extra-small", "small", "medium", "large", "extra-large"},
		Rules:         exactRules("extra-small", "small", "medium", "large", "extra-large"),
		ColumnDefault: "medium",
	}
)

var targets = []Field{
	{Key: "yield_kg", Kind: KindNumeric, Aliases: []string{"yield_kg", "current_yield", "target_yield_kg", "post_current_yield"}},
	{Key: "fine_grade_pct", Kind: KindNumeric, Aliases: []string{"fine_grade_pct", "grade_fine", "post_grade_fine", "fine_pct"}},
	{Key: "premium_grade_pct", Kind: KindNumeric, Aliases: []string{"premium_grade_pct", "grade_premium", "post_grade_premium", "premium_pct"}},
	{Key: "commercial_grade_pct", Kind: KindNumeric, Aliases: []string{"commercial_grade_pct", "grade_commercial", "post_grade_commercial", "commercial_pct"}},
}

// Simple is the 18-key schema of the first model generation. Its artifacts
// derive their own engineered features from these inputs.
var Simple = newSchema("simple", LegacyNumeric, false, []Field{
	{Key: "plant_age_months", Kind: KindNumeric},
	{Key: "number_of_plants", Kind: KindNumeric},
	{Key: "fertilizer_type", Kind: KindCategorical, Domain: simpleFertilizerType},
	{Key: "fertilizer_frequency", Kind: KindCategorical, Domain: simpleFrequency},
	{Key: "pesticide_type", Kind: KindCategorical, Domain: simplePesticideType},
	{Key: "pesticide_frequency", Kind: KindCategorical, Domain: simpleFrequency},
	{Key: "pruning_interval_months", Kind: KindNumeric},
	{Key: "shade_tree_present", Kind: KindBoolean},
	{Key: "soil_ph", Kind: KindNumeric},
	{Key: "avg_temp_c", Kind: KindNumeric},
	{Key: "avg_rainfall_mm", Kind: KindNumeric},
	{Key: "avg_humidity_pct", Kind: KindNumeric},
	{Key: "previous_yield_per_tree", Kind: KindNumeric},
	{Key: "previous_fine_pct", Kind: KindNumeric},
	{Key: "previous_premium_pct", Kind: KindNumeric},
	{Key: "previous_commercial_pct", Kind: KindNumeric},
	{Key: "trees_productive_pct", Kind: KindNumeric},
	{Key: "yield_trend", Kind: KindNumeric},
}, targets)

// Extended is the schema of the CSV-trained generation: farm and cluster
// aggregates, pre-season history, bean measurements and defect rates.
var Extended = newSchema("extended", FrameNumeric, true, []Field{
	{Key: "farm_id", Kind: KindIdentifier, Aliases: []string{"farm_id", "farmid"}},
	{Key: "cluster_id", Kind: KindIdentifier, Aliases: []string{"cluster_id", "clusterid"}},
	{Key: "farm_size_ha", Kind: KindNumeric, Aliases: []string{"farm_size_ha", "farm_area_ha", "farm_area"}},
	{Key: "elevation_m", Kind: KindNumeric, Aliases: []string{"elevation_m", "farm_elevation_m", "elevation"}},
	{Key: "farm_cluster_count", Kind: KindNumeric, Aliases: []string{"farm_cluster_count", "clusters_per_farm", "cluster_count_farm"}},
	{Key: "cluster_plant_share_pct", Kind: KindNumeric, Aliases: []string{"cluster_plant_share_pct", "plant_share_pct", "plants_cluster_share_pct"}},
	{Key: "cluster_tree_density_per_sqm", Kind: KindNumeric, Aliases: []string{"cluster_tree_density_per_sqm", "cluster_tree_density", "trees_per_sqm"}},
	{Key: "plant_age_years", Kind: KindNumeric, Aliases: []string{"plant_age_years", "plant_age_yrs", "plant_age_year"}},
	{Key: "number_of_plants", Kind: KindNumeric, Aliases: []string{"number_of_plants", "plant_count", "total_plants"}},
	{Key: "fertilizer_type", Kind: KindCategorical, Domain: extendedType},
	{Key: "fertilizer_frequency", Kind: KindCategorical, Domain: extendedFrequency},
	{Key: "pesticide_type", Kind: KindCategorical, Domain: extendedType},
	{Key: "pesticide_frequency", Kind: KindCategorical, Domain: extendedFrequency},
	{Key: "pruning_interval_months", Kind: KindNumeric, Aliases: []string{"pruning_interval_months", "pruning_interval", "pruning_months"}},
	{Key: "shade_tree_present", Kind: KindCategorical, Domain: extendedYesNo, Aliases: []string{"shade_tree_present", "shade_trees", "has_shade_tree"}},
	{Key: "soil_ph", Kind: KindNumeric, Aliases: []string{"soil_ph", "soil_p_h", "ph"}},
	{Key: "avg_temp_c", Kind: KindNumeric, Aliases: []string{"avg_temp_c", "monthly_temperature", "average_temperature_c"}},
	{Key: "avg_rainfall_mm", Kind: KindNumeric, Aliases: []string{"avg_rainfall_mm", "rainfall", "rainfall_mm"}},
	{Key: "avg_humidity_pct", Kind: KindNumeric, Aliases: []string{"avg_humidity_pct", "humidity", "humidity_pct"}},
	{Key: "flood_risk_level", Kind: KindCategorical, Domain: floodRisk, Aliases: []string{"flood_risk_level", "flood_risk"}},
	{Key: "flood_events_count", Kind: KindNumeric, Aliases: []string{"flood_events_count", "flood_count", "flood_events"}},
	{Key: "pre_total_trees", Kind: KindNumeric, Aliases: []string{"pre_total_trees", "previous_total_trees"}},
	{Key: "pre_yield_kg", Kind: KindNumeric, Aliases: []string{"pre_yield_kg", "previous_yield", "previous_yield_kg"}},
	{Key: "pre_grade_fine", Kind: KindNumeric, Aliases: []string{"pre_grade_fine", "previous_grade_fine", "fine_grade_kg_before"}},
	{Key: "pre_grade_premium", Kind: KindNumeric, Aliases: []string{"pre_grade_premium", "previous_grade_premium", "premium_grade_kg_before"}},
	{Key: "pre_grade_commercial", Kind: KindNumeric, Aliases: []string{"pre_grade_commercial", "previous_grade_commercial", "commercial_grade_kg_before"}},
	{Key: "previous_fine_pct", Kind: KindNumeric, Aliases: []string{"previous_fine_pct", "grade_fine", "fine_grade_pct_before"}},
	{Key: "previous_premium_pct", Kind: KindNumeric, Aliases: []string{"previous_premium_pct", "grade_premium", "premium_grade_pct_before"}},
	{Key: "previous_commercial_pct", Kind: KindNumeric, Aliases: []string{"previous_commercial_pct", "grade_commercial", "commercial_grade_pct_before"}},
	{Key: "bean_size_mm", Kind: KindNumeric, Aliases: []string{"bean_size_mm", "bean_size", "bean_diameter_mm"}},
	{Key: "bean_screen_size", Kind: KindCategorical, Domain: beanScreen, Aliases: []string{"bean_screen_size", "screen_size", "bean_size_class"}},
	{Key: "bean_moisture", Kind: KindNumeric, Aliases: []string{"bean_moisture", "bean_moisture_pct", "moisture"}},
	{Key: "defect_black_pct", Kind: KindNumeric, Aliases: []string{"defect_black_pct", "black_bean_pct"}},
	{Key: "defect_mold_infested_pct", Kind: KindNumeric, Aliases: []string{"defect_mold_infested_pct", "mold_infested_pct", "defect_moldy_pct"}},
	{Key: "defect_immature_pct", Kind: KindNumeric, Aliases: []string{"defect_immature_pct", "immature_bean_pct"}},
	{Key: "defect_broken_pct", Kind: KindNumeric, Aliases: []string{"defect_broken_pct", "broken_bean_pct"}},
	{Key: "defect_dried_cherries_pct", Kind: KindNumeric, Aliases: []string{"defect_dried_cherries_pct", "dried_cherries_pct"}},
	{Key: "defect_foreign_matter_pct", Kind: KindNumeric, Aliases: []string{"defect_foreign_matter_pct", "foreign_matter_pct"}},
	{Key: "pns_total_defects_pct", Kind: KindNumeric, Aliases: []string{"pns_total_defects_pct", "total_defects_pct"}},
}, targets)

func init() {
	Register(Simple)
	Register(Extended)
}
