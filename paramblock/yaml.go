package paramblock

import (
	"fmt"
	"io"

	"github.com/chargebyte/ra-utils/internal/protoerr"
	"gopkg.in/yaml.v3"
)

// yamlPT1000 is one pt1000s entry: either a bare temperature scalar
// ("25.0°C", "disabled") or a mapping with abort-temperature and
// resistance-offset keys.
type yamlPT1000 struct {
	Temperature      string `yaml:"abort-temperature"`
	ResistanceOffset string `yaml:"resistance-offset"`
}

func (p *yamlPT1000) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Temperature = node.Value
		return nil
	}
	type plain yamlPT1000
	return node.Decode((*plain)(p))
}

// yamlContactor is one contactors entry: either a bare type scalar or a
// mapping with type, close-time and open-time keys.
type yamlContactor struct {
	Type      string `yaml:"type"`
	CloseTime string `yaml:"close-time"`
	OpenTime  string `yaml:"open-time"`
}

func (c *yamlContactor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Type = node.Value
		return nil
	}
	type plain yamlContactor
	return node.Decode((*plain)(c))
}

// yamlDoc is the top-level shape of the YAML configuration file.
type yamlDoc struct {
	Version    *uint16         `yaml:"version"`
	PT1000s    []yamlPT1000    `yaml:"pt1000s"`
	Contactors []yamlContactor `yaml:"contactors"`
	Estops     []string        `yaml:"estops"`
}

// ReadYAML parses the human-editable configuration format into a
// ParamBlock. Supplying more entries than an array holds is a warning
// (surplus dropped); supplying some but fewer is a warning (remaining
// entries keep their disabled/zero default), while an absent or empty
// section is not warned about; supplying zero entries across all three
// arrays is an error, as is any entry that fails to parse.
func ReadYAML(r io.Reader) (ParamBlock, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ParamBlock{}, nil, protoerr.Wrap(protoerr.KindResource, "read yaml param config", err)
	}

	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ParamBlock{}, nil, protoerr.Wrap(protoerr.KindInput, "parse yaml param config", err)
	}

	if doc.Version != nil && *doc.Version != CurrentVersion {
		return ParamBlock{}, nil, protoerr.Newf(protoerr.KindInput, "yaml param config: unsupported version %d", *doc.Version)
	}
	if len(doc.PT1000s) == 0 && len(doc.Contactors) == 0 && len(doc.Estops) == 0 {
		return ParamBlock{}, nil, protoerr.New(protoerr.KindInput, "yaml param config: no pt1000s, contactors or estops entries parsed")
	}

	var warnings []string
	pb := ParamBlock{Version: CurrentVersion}
	for i := range pb.Temperatures {
		pb.Temperatures[i] = TempDisabled
	}

	w, err := fillPT1000s(&pb, doc.PT1000s)
	if err != nil {
		return ParamBlock{}, nil, err
	}
	warnings = append(warnings, w...)

	w, err = fillContactors(&pb, doc.Contactors)
	if err != nil {
		return ParamBlock{}, nil, err
	}
	warnings = append(warnings, w...)

	w, err = fillEstops(&pb, doc.Estops)
	if err != nil {
		return ParamBlock{}, nil, err
	}
	warnings = append(warnings, w...)

	return pb, warnings, nil
}

func surplusDeficit(section string, supplied, capacity int) []string {
	if supplied > capacity {
		return []string{fmt.Sprintf("%s: %d entries supplied, only %d used", section, supplied, capacity)}
	}
	if supplied > 0 && supplied < capacity {
		return []string{fmt.Sprintf("%s: %d entries supplied, %d left at default", section, supplied, capacity-supplied)}
	}
	return nil
}

func fillPT1000s(pb *ParamBlock, entries []yamlPT1000) ([]string, error) {
	n := len(pb.Temperatures)
	warnings := surplusDeficit("pt1000s", len(entries), n)
	for i := 0; i < n && i < len(entries); i++ {
		if entries[i].Temperature != "" {
			v, err := ParseTemperature(entries[i].Temperature)
			if err != nil {
				return nil, err
			}
			pb.Temperatures[i] = v
		}
		if entries[i].ResistanceOffset != "" {
			v, err := ParseResistanceOffset(entries[i].ResistanceOffset)
			if err != nil {
				return nil, err
			}
			pb.TempResistanceOffsets[i] = v
		}
	}
	return warnings, nil
}

func fillContactors(pb *ParamBlock, entries []yamlContactor) ([]string, error) {
	n := len(pb.ContactorTypes)
	warnings := surplusDeficit("contactors", len(entries), n)
	for i := 0; i < n && i < len(entries); i++ {
		if entries[i].Type != "" {
			v, err := ParseContactorType(entries[i].Type)
			if err != nil {
				return nil, err
			}
			pb.ContactorTypes[i] = v
		}
		if entries[i].CloseTime != "" {
			v, err := ParseContactorTime(entries[i].CloseTime)
			if err != nil {
				return nil, err
			}
			pb.ContactorCloseTimes[i] = v
		}
		if entries[i].OpenTime != "" {
			v, err := ParseContactorTime(entries[i].OpenTime)
			if err != nil {
				return nil, err
			}
			pb.ContactorOpenTimes[i] = v
		}
	}
	return warnings, nil
}

func fillEstops(pb *ParamBlock, entries []string) ([]string, error) {
	n := len(pb.EstopTypes)
	warnings := surplusDeficit("estops", len(entries), n)
	for i := 0; i < n && i < len(entries); i++ {
		if entries[i] == "" {
			continue
		}
		v, err := ParseEstopType(entries[i])
		if err != nil {
			return nil, err
		}
		pb.EstopTypes[i] = v
	}
	return warnings, nil
}
