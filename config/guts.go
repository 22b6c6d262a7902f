package config

// Guts holds the knobs that rarely need touching but occasionally save the
// day: preset token lists, game-config line prefixes, naming conventions.
// Every field is overridable from the [guts] table of the settings file.
type Guts struct {
	PresetCheckReferences                       []string `mapstructure:"preset_check_references"`
	PresetTurnNormalGrass                       []string `mapstructure:"preset_turn_normal_grass"`
	PresetTurnNormalGrassAddWithCheckReferences []string `mapstructure:"preset_turn_normal_grass_add_with_check_references"`
	PresetMergeLoadOrder                        []string `mapstructure:"preset_merge_load_order"`
	PresetMergeLoadOrderAddWithCheckReferences  []string `mapstructure:"preset_merge_load_order_add_with_check_references"`
	PresetMergeLoadOrderAddWithTurnNormalGrass  []string `mapstructure:"preset_merge_load_order_add_with_turn_normal_grass"`
	PresetMergeLoadOrderGrass                   []string `mapstructure:"preset_merge_load_order_grass"`
	MergeLoadOrderBuckets                       []int    `mapstructure:"merge_load_order_buckets"`

	OmwConfigPaths           []string `mapstructure:"omw_config_paths"`
	OmwLineData              string   `mapstructure:"omw_line_data"`
	OmwLineContent           string   `mapstructure:"omw_line_content"`
	OmwLineGroundcover       string   `mapstructure:"omw_line_groundcover"`
	OmwLineFallbackArchive   string   `mapstructure:"omw_line_fallback_archive"`
	MorSectionGameFiles      string   `mapstructure:"mor_section_game_files"`
	MorSectionArchives       string   `mapstructure:"mor_section_archives"`
	MorDataFilesDir          string   `mapstructure:"mor_data_files_dir"`
	MorBaseArchive           string   `mapstructure:"mor_base_archive"`
	PluginExtensions         []string `mapstructure:"plugin_extensions"`
	PluginExtensionsToIgnore []string `mapstructure:"plugin_extensions_to_ignore"`
	UnexpectedTagsToIgnore   []string `mapstructure:"unexpected_tags_to_ignore"`

	ListOptionsPrefixBaseDir              string `mapstructure:"list_options_prefix_base_dir"`
	ListOptionsPrefixConfig               string `mapstructure:"list_options_prefix_config"`
	ListOptionsPrefixAppendToUseLoadOrder string `mapstructure:"list_options_prefix_append_to_use_load_order"`
	ListOptionsPrefixSkipFromUseLoadOrder string `mapstructure:"list_options_prefix_skip_from_use_load_order"`

	MeshesDir       string `mapstructure:"meshes_dir"`
	MeshExtension   string `mapstructure:"mesh_extension"`
	GrassMeshPrefix string `mapstructure:"grass_mesh_prefix"`

	TNGPluginSuffixContent          string `mapstructure:"tng_plugin_suffix_content"`
	TNGPluginSuffixGroundcover      string `mapstructure:"tng_plugin_suffix_groundcover"`
	TNGHeaderAuthorAppend           string `mapstructure:"tng_header_author_append"`
	TNGHeaderDescriptionContent     string `mapstructure:"tng_header_description_content"`
	TNGHeaderDescriptionGroundcover string `mapstructure:"tng_header_description_groundcover"`

	HeaderVersion           float64 `mapstructure:"header_version"`
	HeaderAuthor            string  `mapstructure:"header_author"`
	HeaderDescriptionPrefix string  `mapstructure:"header_description_prefix"`
	HeaderDescriptionSuffix string  `mapstructure:"header_description_suffix"`

	LogBackupSuffix      string `mapstructure:"log_backup_suffix"`
	SettingsBackupSuffix string `mapstructure:"settings_backup_suffix"`

	PrefixCombinedStats          string `mapstructure:"prefix_combined_stats"`
	PrefixIgnoredImportantError  string `mapstructure:"prefix_ignored_important_error"`
	SuffixIgnoreErrorsSuggestion string `mapstructure:"suffix_ignore_errors_suggestion"`
	SkippedPluginsMsgVerbosity   int    `mapstructure:"skipped_plugins_msg_verbosity"`
}

func defaultGuts() Guts {
	return Guts{
		PresetCheckReferences: []string{
			"CheckReferences.esp", "dry_run", "use_load_order", "show_missing_refs",
			"complete_replace", "no_compare", "ignore_errors", "insufficient_merge",
			"dry_run_dismiss_stats",
		},
		PresetTurnNormalGrass: []string{
			"TurnNormalGrass.esp", "dry_run", "use_load_order", "turn_normal_grass",
			"complete_replace", "no_compare", "ignore_errors", "insufficient_merge",
			"dry_run_dismiss_stats", "no_show_missing_refs",
		},
		PresetTurnNormalGrassAddWithCheckReferences: []string{"show_missing_refs"},
		PresetMergeLoadOrder: []string{
			"MergedLoadOrder.esp", "no_dry_run", "use_load_order",
			"exclude_deleted_records", "complete_replace", "strip_masters",
			"ignore_errors", "no_insufficient_merge",
		},
		PresetMergeLoadOrderAddWithCheckReferences: []string{"show_missing_refs"},
		PresetMergeLoadOrderAddWithTurnNormalGrass: []string{"turn_normal_grass", "no_dry_run_secondary"},
		PresetMergeLoadOrderGrass: []string{
			"MergedLoadOrderGrass.esp", "use_load_order", "exclude_deleted_records",
			"grass", "strip_masters", "ignore_errors", "insufficient_merge",
		},
		MergeLoadOrderBuckets: []int{0, 100, 200, 700},

		OmwConfigPaths: []string{
			"openmw.cfg",
			"openmw/openmw.cfg",
			"My Games/OpenMW/openmw.cfg",
			"Morrowind.ini",
			"../Morrowind.ini",
		},
		OmwLineData:              "data=",
		OmwLineContent:           "content=",
		OmwLineGroundcover:       "groundcover=",
		OmwLineFallbackArchive:   "fallback-archive=",
		MorSectionGameFiles:      "Game Files",
		MorSectionArchives:       "Archives",
		MorDataFilesDir:          "Data Files",
		MorBaseArchive:           "Morrowind.bsa",
		PluginExtensions:         []string{".esm", ".esp", ".omwaddon", ".bsa", ".omwscripts"},
		PluginExtensionsToIgnore: []string{".omwscripts"},
		UnexpectedTagsToIgnore:   []string{"LUAL"},

		ListOptionsPrefixBaseDir:              "base_dir:",
		ListOptionsPrefixConfig:               "config:",
		ListOptionsPrefixAppendToUseLoadOrder: "append_to_use_load_order:",
		ListOptionsPrefixSkipFromUseLoadOrder: "skip_from_use_load_order:",

		MeshesDir:       "meshes",
		MeshExtension:   ".nif",
		GrassMeshPrefix: "grass",

		TNGPluginSuffixContent:     "-CONTENT.esp",
		TNGPluginSuffixGroundcover: "-GRS.esp",
		TNGHeaderAuthorAppend:      ", idea by Hemaris",
		TNGHeaderDescriptionContent: "ENABLE THIS PLUGIN AS A NORMAL MOD.\n" +
			"Turns selected plugins' grass-shaped static plants into \"grass\" in the grass mod sense.",
		TNGHeaderDescriptionGroundcover: "OPENMW PLAYERS: LOAD THIS WITH A GROUNDCOVER= LINE IN OPENMW.CFG.\n" +
			"MGE XE USERS: ONLY ENABLE THIS WHILE GENERATING DISTANT LAND.\n" +
			"Turns selected plugins' grass-shaped static plants into \"grass\" in the grass mod sense.",

		HeaderVersion:           1.3,
		HeaderAuthor:            "Habasi",
		HeaderDescriptionPrefix: "Auto-merged ",
		HeaderDescriptionSuffix: " plugins",

		LogBackupSuffix:      ".backup",
		SettingsBackupSuffix: ".backup",

		PrefixCombinedStats:         "Combined plugin lists stats:",
		PrefixIgnoredImportantError: "Ignored important error: ",
		SuffixIgnoreErrorsSuggestion: "\n\tFix the problem or add \"--ignore-important-errors\"" +
			"(may rarely cause unexpected behaviour) to ignore",
		SkippedPluginsMsgVerbosity: 1,
	}
}

// KeepOnlyLastInfo names an INFO record that must survive only once, with
// the topic it belongs to and the reason it is special.
type KeepOnlyLastInfo struct {
	ID     string `mapstructure:"id"`
	Topic  string `mapstructure:"topic"`
	Reason string `mapstructure:"reason"`
}

// Advanced holds the record-level tweaks users occasionally need.
type Advanced struct {
	GrassFilter         []string           `mapstructure:"grass_filter"`
	GroundcoverMarkers  []string           `mapstructure:"groundcover_markers"`
	KeepOnlyLastInfoIDs []KeepOnlyLastInfo `mapstructure:"keep_only_last_info_ids"`
}

func defaultAdvanced() Advanced {
	return Advanced{
		GrassFilter:        []string{"unknown_grass"},
		GroundcoverMarkers: []string{"tri grass", "grs_"},
		KeepOnlyLastInfoIDs: []KeepOnlyLastInfo{{
			ID:    "19511310302976825065",
			Topic: "threaten",
			Reason: "This record is problematic when coming from both LGNPC_GnaarMok and " +
				"LGNPC_SecretMasters. Error in OpenMW-CS: \"Loading failed: attempt to " +
				"change the ID of a record\".",
		}},
	}
}
