package dns

import (
	"strconv"
	"strings"
	"time"

	"github.com/gcloudkit/gcloud/pkg/gcloud"
	raw "google.golang.org/api/dns/v1"
)

// Zone is a managed zone. DNSName is fully qualified, e.g. "example.com.".
type Zone struct {
	Name        string
	DNSName     string
	Description string
	ID          string
	Created     time.Time
	NameServers []string
	Labels      map[string]string
}

func zoneFromRaw(z *raw.ManagedZone) (*Zone, error) {
	if z == nil {
		return &Zone{}, nil
	}
	out := &Zone{
		Name:        z.Name,
		DNSName:     z.DnsName,
		Description: z.Description,
		NameServers: z.NameServers,
		Labels:      gcloud.CopyLabels(z.Labels),
	}
	if z.Id != 0 {
		out.ID = strconv.FormatUint(z.Id, 10)
	}
	created, err := gcloud.ParseTime("ManagedZone", "creationTime", z.CreationTime)
	if err != nil {
		return nil, err
	}
	out.Created = created
	return out, nil
}

func (z *Zone) toRaw() *raw.ManagedZone {
	return &raw.ManagedZone{
		Name:        z.Name,
		DnsName:     Qualify(z.DNSName),
		Description: z.Description,
		Labels:      gcloud.CopyLabels(z.Labels),
	}
}

// Record builds a record set in the zone. A name without a trailing dot is
// relative to the zone; "" and "@" name the apex.
func (z *Zone) Record(name, typ string, ttl time.Duration, data ...string) *Record {
	return &Record{
		Name: z.qualify(name),
		Type: strings.ToUpper(typ),
		TTL:  ttl,
		Data: data,
	}
}

func (z *Zone) qualify(name string) string {
	origin := Qualify(z.DNSName)
	switch {
	case name == "" || name == "@":
		return origin
	case strings.HasSuffix(name, "."):
		return name
	}
	return name + "." + origin
}

// Qualify adds the trailing dot of a fully qualified name if missing.
func Qualify(name string) string {
	if name == "" || strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// Record is a resource record set: every record of one type at one name.
type Record struct {
	Name string
	Type string
	TTL  time.Duration
	Data []string
}

func recordFromRaw(r *raw.ResourceRecordSet) *Record {
	if r == nil {
		return &Record{}
	}
	return &Record{
		Name: r.Name,
		Type: r.Type,
		TTL:  time.Duration(r.Ttl) * time.Second,
		Data: r.Rrdatas,
	}
}

func (r *Record) toRaw() *raw.ResourceRecordSet {
	return &raw.ResourceRecordSet{
		Name:    r.Name,
		Type:    r.Type,
		Ttl:     int64(r.TTL / time.Second),
		Rrdatas: r.Data,
	}
}

func recordsToRaw(rs []*Record) []*raw.ResourceRecordSet {
	var out []*raw.ResourceRecordSet
	for _, r := range rs {
		out = append(out, r.toRaw())
	}
	return out
}

func recordsFromRaw(rs []*raw.ResourceRecordSet) []*Record {
	var out []*Record
	for _, r := range rs {
		out = append(out, recordFromRaw(r))
	}
	return out
}

// Change is an atomic set of additions and deletions. Status is "pending"
// until the change has been applied, then "done".
type Change struct {
	ID        string
	Status    string
	Started   time.Time
	Additions []*Record
	Deletions []*Record
}

func (c *Change) Done() bool {
	return c.Status == "done"
}

func changeFromRaw(c *raw.Change) (*Change, error) {
	if c == nil {
		return &Change{}, nil
	}
	out := &Change{
		ID:        c.Id,
		Status:    c.Status,
		Additions: recordsFromRaw(c.Additions),
		Deletions: recordsFromRaw(c.Deletions),
	}
	started, err := gcloud.ParseTime("Change", "startTime", c.StartTime)
	if err != nil {
		return nil, err
	}
	out.Started = started
	return out, nil
}
