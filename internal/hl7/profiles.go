package hl7

import (
	"errors"
	"fmt"

	"github.com/agentic-research/hl7find/api"
)

// ErrUnknownProfile is returned when no profile is registered under a name.
var ErrUnknownProfile = errors.New("unknown message profile")

// Profiles maps message structure names (ORU_R01) and type_trigger aliases
// (ADT_A04) to grouping profiles.
type Profiles map[string]*api.Profile

// Register adds p under its own name and under every alias.
func (r Profiles) Register(p *api.Profile, aliases ...string) {
	r[p.Name] = p
	for _, a := range aliases {
		r[a] = p
	}
}

// Get returns the profile registered under name.
func (r Profiles) Get(name string) (*api.Profile, error) {
	if p, ok := r[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
}

// Lookup resolves a profile from the MSH-9 components, preferring the
// explicit message structure over type_trigger.
func (r Profiles) Lookup(msgType, trigger, structure string) (*api.Profile, bool) {
	if p, ok := r[structure]; ok && structure != "" {
		return p, true
	}
	if msgType == "" || trigger == "" {
		return nil, false
	}
	p, ok := r[msgType+"_"+trigger]
	return p, ok
}

// DefaultProfiles returns a registry holding the built-in ADT_A01 and ORU_R01 profiles.
func DefaultProfiles() Profiles {
	reg := Profiles{}
	reg.Register(ADTA01(), "ADT_A04", "ADT_A08", "ADT_A13")
	reg.Register(ORUR01())
	return reg
}

func seg(name string) api.Element { return api.Element{Name: name} }
func opt(name string) api.Element { return api.Element{Name: name, Optional: true} }
func rep(name string) api.Element { return api.Element{Name: name, Repeating: true, Optional: true} }
func group(name string, repeating, optional bool, children ...api.Element) api.Element {
	return api.Element{Name: name, Repeating: repeating, Optional: optional, Children: children}
}

// ADTA01 is the ADT_A01 structure (admit/visit notification).
func ADTA01() *api.Profile {
	return &api.Profile{
		Name: "ADT_A01",
		Children: []api.Element{
			seg("MSH"), rep("SFT"), seg("EVN"), seg("PID"), opt("PD1"), rep("ROL"), rep("NK1"),
			seg("PV1"), opt("PV2"), rep("ROL"), rep("DB1"), rep("OBX"), rep("AL1"), rep("DG1"),
			opt("DRG"),
			group("PROCEDURE", true, true, seg("PR1"), rep("ROL")),
			rep("GT1"),
			group("INSURANCE", true, true, seg("IN1"), opt("IN2"), rep("IN3"), rep("ROL")),
			opt("ACC"), opt("UB1"), opt("UB2"), opt("PDA"),
		},
	}
}

// ORUR01 is the ORU_R01 structure (unsolicited observation result).
func ORUR01() *api.Profile {
	return &api.Profile{
		Name: "ORU_R01",
		Children: []api.Element{
			seg("MSH"), rep("SFT"),
			group("PATIENT_RESULT", true, false,
				group("PATIENT", false, true,
					seg("PID"), opt("PD1"), rep("NTE"), rep("NK1"),
					group("VISIT", false, true, seg("PV1"), opt("PV2")),
				),
				group("ORDER_OBSERVATION", true, false,
					opt("ORC"), seg("OBR"), rep("NTE"),
					group("TIMING_QTY", true, true, seg("TQ1"), rep("TQ2")),
					opt("CTD"),
					group("OBSERVATION", true, true, seg("OBX"), rep("NTE")),
					rep("FT1"), rep("CTI"),
					group("SPECIMEN", true, true, seg("SPM"), rep("OBX")),
				),
			),
			opt("DSC"),
		},
	}
}
