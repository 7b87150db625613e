package booking

import "strings"

// ServiceCenter is one entry of the read-only service-center directory.
type ServiceCenter struct {
	Name    string
	Phone   string
	Address string
	Hours   string
}

// Directory maps service-center names to their contact details. It is built
// once at startup and never mutated afterwards, so concurrent sessions can
// read it without locking.
type Directory struct {
	centers []ServiceCenter
	byName  map[string]ServiceCenter
}

func NewDirectory(centers []ServiceCenter) Directory {
	byName := make(map[string]ServiceCenter, len(centers))
	kept := make([]ServiceCenter, 0, len(centers))
	for _, c := range centers {
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Phone == "" {
			continue
		}
		c.Name = name
		if _, exists := byName[strings.ToLower(name)]; exists {
			continue
		}
		byName[strings.ToLower(name)] = c
		kept = append(kept, c)
	}
	return Directory{centers: kept, byName: byName}
}

func (d Directory) Resolve(name string) (ServiceCenter, bool) {
	c, ok := d.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Centers returns the directory entries in load order. The slice is a copy.
func (d Directory) Centers() []ServiceCenter {
	out := make([]ServiceCenter, len(d.centers))
	copy(out, d.centers)
	return out
}

func (d Directory) Len() int { return len(d.centers) }
