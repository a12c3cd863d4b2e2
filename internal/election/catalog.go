package election

import (
	"os"
	"sort"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// CatalogRole is one role in the standard position catalog. ElderSeat marks
// the roles that count toward the eldersCount constraint; the mapping is
// policy data supplied here, never inferred from the role name.
type CatalogRole struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	ElderSeat   bool   `yaml:"elder_seat,omitempty" json:"elder_seat,omitempty"`
}

type CatalogDepartment struct {
	Department string        `yaml:"department" json:"department"`
	Roles      []CatalogRole `yaml:"roles" json:"roles"`
}

type Catalog struct {
	Departments []CatalogDepartment `yaml:"departments" json:"departments"`

	elderSeats map[string]bool
}

// collator sorts Portuguese role and candidate names ("Ancião" before
// "Diácono" and so on), which byte ordering gets wrong.
var collator = collate.New(language.BrazilianPortuguese)

func (c *Catalog) index() {
	c.elderSeats = make(map[string]bool)
	for _, d := range c.Departments {
		for _, role := range d.Roles {
			if role.ElderSeat {
				c.elderSeats[role.Name] = true
			}
		}
	}
	for _, d := range c.Departments {
		roles := d.Roles
		sort.SliceStable(roles, func(i, j int) bool {
			return collator.CompareString(roles[i].Name, roles[j].Name) < 0
		})
	}
}

func (c *Catalog) IsElderSeat(position string) bool {
	return c.elderSeats[position]
}

// LoadCatalog reads a position catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if len(c.Departments) == 0 {
		return nil, validationf("catalog has no departments")
	}
	c.index()
	return &c, nil
}

// DefaultCatalog is the standard role list used when no catalog file is
// configured.
func DefaultCatalog() *Catalog {
	c := &Catalog{Departments: []CatalogDepartment{
		{
			Department: "Administração",
			Roles: []CatalogRole{
				{Name: "Primeiro Ancião(ã)", ElderSeat: true},
				{Name: "Ancião/Anciã Teen", ElderSeat: true},
				{Name: "Ancião/Anciã Jovem", ElderSeat: true},
				{Name: "Secretário(a)"},
				{Name: "Secretário(a) Associado(a)"},
				{Name: "Secretário(a) Teen"},
				{Name: "Tesoureiro(a)"},
				{Name: "Tesoureiro(a) Associado(a)"},
				{Name: "Tesoureiro(a) Teen"},
				{Name: "Patrimônio"},
			},
		},
		{
			Department: "Diaconato",
			Roles: []CatalogRole{
				{Name: "Primeiro Diácono"},
				{Name: "Diáconos"},
				{Name: "Diácono(s) Teen"},
				{Name: "Primeira Diaconisa"},
				{Name: "Diaconisas"},
				{Name: "Diaconisa(s) Teen"},
			},
		},
		{
			Department: "Mordomia Cristã",
			Roles: []CatalogRole{
				{Name: "Diretor(a)"},
				{Name: "Diretor(a) Associado(a)"},
				{Name: "Discípulo Teen"},
			},
		},
	}}
	c.index()
	return c
}
