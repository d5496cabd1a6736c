package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceAccounts lists the Monzo accounts to fetch, keyed by source name.
// Pot sources are labelled "<name> Pot" when fetched.
type SourceAccounts struct {
	Main map[string]string `yaml:"main_accounts"`
	Pots map[string]string `yaml:"pot_accounts"`
}

// Lookups bundles the immutable lookup tables loaded once per run: source
// accounts, pot id to pot name, Monzo category code replacements, and the
// Lunch Money category and asset registries.
type Lookups struct {
	Accounts             *SourceAccounts
	PotNames             map[string]string
	CategoryReplacements map[string]string
	LunchMoneyCategories map[string]int64
	Assets               map[string]int
}

// LoadLookups reads every lookup-table file named in the config.
func LoadLookups(cfg *Config) (*Lookups, error) {
	accounts, err := LoadSourceAccounts(cfg.Monzo.AccountsPath)
	if err != nil {
		return nil, err
	}
	potNames, err := LoadPotNames(cfg.Lookups.PotsPath)
	if err != nil {
		return nil, err
	}
	replacements, err := LoadCategoryReplacements(cfg.Lookups.CategoriesPath)
	if err != nil {
		return nil, err
	}
	categories, err := LoadLunchMoneyCategories(cfg.Lookups.LunchMoneyCategoriesPath)
	if err != nil {
		return nil, err
	}
	assets, err := LoadAssets(cfg.Lookups.AssetsPath)
	if err != nil {
		return nil, err
	}

	return &Lookups{
		Accounts:             accounts,
		PotNames:             potNames,
		CategoryReplacements: replacements,
		LunchMoneyCategories: categories,
		Assets:               assets,
	}, nil
}

func LoadSourceAccounts(path string) (*SourceAccounts, error) {
	var accounts SourceAccounts
	if err := loadYAML(path, &accounts); err != nil {
		return nil, fmt.Errorf("loading source accounts: %w", err)
	}
	return &accounts, nil
}

// LoadPotNames reads the pot registry and returns pot id -> pot name.
func LoadPotNames(path string) (map[string]string, error) {
	var doc struct {
		Pots []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
		} `yaml:"pots"`
	}
	if err := loadYAML(path, &doc); err != nil {
		return nil, fmt.Errorf("loading pot names: %w", err)
	}

	names := make(map[string]string, len(doc.Pots))
	for _, pot := range doc.Pots {
		names[pot.ID] = pot.Name
	}
	return names, nil
}

// LoadCategoryReplacements reads the Monzo category code -> display name
// map. Codes not in the map fall through to underscore and title formatting.
func LoadCategoryReplacements(path string) (map[string]string, error) {
	replacements := make(map[string]string)
	if err := loadYAML(path, &replacements); err != nil {
		return nil, fmt.Errorf("loading category replacements: %w", err)
	}
	return replacements, nil
}

// LoadLunchMoneyCategories reads the Lunch Money category registry and
// returns category name -> category id.
func LoadLunchMoneyCategories(path string) (map[string]int64, error) {
	var doc struct {
		Categories []struct {
			Name string `yaml:"name"`
			ID   int64  `yaml:"id"`
		} `yaml:"categories"`
	}
	if err := loadYAML(path, &doc); err != nil {
		return nil, fmt.Errorf("loading lunch money categories: %w", err)
	}

	categories := make(map[string]int64, len(doc.Categories))
	for _, c := range doc.Categories {
		categories[c.Name] = c.ID
	}
	return categories, nil
}

// LoadAssets reads the Lunch Money asset registry and returns source name ->
// asset id.
func LoadAssets(path string) (map[string]int, error) {
	var doc struct {
		Assets []struct {
			DisplayName string `yaml:"display_name"`
			ID          int    `yaml:"id"`
		} `yaml:"assets"`
	}
	if err := loadYAML(path, &doc); err != nil {
		return nil, fmt.Errorf("loading lunch money assets: %w", err)
	}

	assets := make(map[string]int, len(doc.Assets))
	for _, a := range doc.Assets {
		assets[a.DisplayName] = a.ID
	}
	return assets, nil
}

func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
