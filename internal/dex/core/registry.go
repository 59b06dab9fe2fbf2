package core

var registry = map[string]*Venue{}

func Register(v *Venue)    { registry[v.Meta.ID] = v }
func Get(id string) *Venue { return registry[id] }
func Reset()               { registry = map[string]*Venue{} }

func Enabled(ids []string) []*Venue {
	out := make([]*Venue, 0, len(ids))
	for _, id := range ids {
		if v := Get(id); v != nil {
			out = append(out, v)
		}
	}
	return out
}
