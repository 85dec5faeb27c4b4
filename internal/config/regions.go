package config

import "recmerge/internal/merge"

// DefaultRegions returns the event regions in insertion order. Values are
// matched folded (see merge.Fold), so "United Kingdom" hits "unitedkingdom".
func DefaultRegions() []merge.Region {
	return []merge.Region{
		{
			Name:   "europe",
			Marker: "// == EUROPE ==",
			Values: []string{
				"germany", "france", "netherlands", "spain", "italy", "unitedkingdom",
				"switzerland", "portugal", "denmark", "finland", "cyprus",
			},
		},
		{
			Name:   "americas",
			Marker: "// == AMERICAS ==",
			Values: []string{
				"usa", "canada", "brazil", "mexico", "chile", "argentina", "colombia", "peru",
			},
		},
		{
			Name:   "asia_pacific",
			Marker: "// == ASIA-PACIFIC ==",
			Values: []string{
				"china", "japan", "india", "southkorea", "australia", "newzealand",
				"singapore", "hongkong", "taiwan", "malaysia", "thailand", "indonesia",
				"philippines", "vietnam", "pakistan", "bangladesh", "srilanka", "nepal",
				"cambodia", "myanmar",
			},
		},
		{
			Name:   "middle_east_central_asia",
			Marker: "// == MIDDLE EAST & CENTRAL ASIA ==",
			Values: []string{
				"uae", "saudi", "qatar", "turkey", "israel", "iran", "iraq", "lebanon",
				"bahrain", "jordan", "azerbaijan", "kazakhstan", "uzbekistan",
				"turkmenistan", "kyrgyzstan", "georgia", "armenia", "mongolia", "kuwait",
				"oman",
			},
		},
		{
			Name:   "africa",
			Marker: "// == AFRICA ==",
			Values: []string{
				"southafrica", "nigeria", "egypt", "kenya", "ghana", "morocco", "ethiopia",
				"angola", "algeria", "tunisia", "rwanda", "tanzania", "botswana", "uganda",
				"senegal", "mozambique",
			},
		},
	}
}
