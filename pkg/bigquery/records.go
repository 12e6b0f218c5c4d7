package bigquery

import (
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	raw "google.golang.org/api/bigquery/v2"
)

type Dataset struct {
	ProjectID   string
	DatasetID   string
	Name        string
	Description string
	Location    string
	// Default lifetime of new tables, zero for none
	DefaultExpiration time.Duration
	Labels            map[string]string
	Created           time.Time
}

func datasetFromRaw(d *raw.Dataset) *Dataset {
	if d == nil {
		return &Dataset{}
	}
	out := &Dataset{
		Name:              d.FriendlyName,
		Description:       d.Description,
		Location:          d.Location,
		DefaultExpiration: time.Duration(d.DefaultTableExpirationMs) * time.Millisecond,
		Labels:            gcloud.CopyLabels(d.Labels),
		Created:           gcloud.Millis(d.CreationTime),
	}
	if ref := d.DatasetReference; ref != nil {
		out.ProjectID, out.DatasetID = ref.ProjectId, ref.DatasetId
	}
	return out
}

func datasetFromList(d *raw.DatasetListDatasets) *Dataset {
	out := &Dataset{
		Name:     d.FriendlyName,
		Location: d.Location,
		Labels:   gcloud.CopyLabels(d.Labels),
	}
	if ref := d.DatasetReference; ref != nil {
		out.ProjectID, out.DatasetID = ref.ProjectId, ref.DatasetId
	}
	return out
}

func (d *Dataset) toRaw(project string) *raw.Dataset {
	if d.ProjectID != "" {
		project = d.ProjectID
	}
	return &raw.Dataset{
		DatasetReference:         &raw.DatasetReference{ProjectId: project, DatasetId: d.DatasetID},
		FriendlyName:             d.Name,
		Description:              d.Description,
		Location:                 d.Location,
		DefaultTableExpirationMs: int64(d.DefaultExpiration / time.Millisecond),
		Labels:                   gcloud.CopyLabels(d.Labels),
	}
}

// Field is a column of a table schema. Mode is NULLABLE, REQUIRED or
// REPEATED; Type RECORD fields carry nested Fields.
type Field struct {
	Name        string
	Type        string
	Mode        string
	Description string
	Fields      []*Field
}

func schemaFromRaw(s *raw.TableSchema) []*Field {
	if s == nil {
		return nil
	}
	return fieldsFromRaw(s.Fields)
}

func fieldsFromRaw(fields []*raw.TableFieldSchema) []*Field {
	var out []*Field
	for _, f := range fields {
		out = append(out, &Field{
			Name:        f.Name,
			Type:        f.Type,
			Mode:        f.Mode,
			Description: f.Description,
			Fields:      fieldsFromRaw(f.Fields),
		})
	}
	return out
}

func schemaToRaw(fields []*Field) *raw.TableSchema {
	if len(fields) == 0 {
		return nil
	}
	return &raw.TableSchema{Fields: fieldsToRaw(fields)}
}

func fieldsToRaw(fields []*Field) []*raw.TableFieldSchema {
	var out []*raw.TableFieldSchema
	for _, f := range fields {
		out = append(out, &raw.TableFieldSchema{
			Name:        f.Name,
			Type:        f.Type,
			Mode:        f.Mode,
			Description: f.Description,
			Fields:      fieldsToRaw(f.Fields),
		})
	}
	return out
}

type Table struct {
	ProjectID   string
	DatasetID   string
	TableID     string
	Name        string
	Description string
	Schema      []*Field
	// TABLE, VIEW or EXTERNAL
	Type    string
	Rows    int64
	Bytes   int64
	Created time.Time
}

func tableFromRaw(t *raw.Table) *Table {
	if t == nil {
		return &Table{}
	}
	out := &Table{
		Name:        t.FriendlyName,
		Description: t.Description,
		Schema:      schemaFromRaw(t.Schema),
		Type:        t.Type,
		Rows:        int64(t.NumRows),
		Bytes:       t.NumBytes,
		Created:     gcloud.Millis(t.CreationTime),
	}
	if ref := t.TableReference; ref != nil {
		out.ProjectID, out.DatasetID, out.TableID = ref.ProjectId, ref.DatasetId, ref.TableId
	}
	return out
}

func tableFromList(t *raw.TableListTables) *Table {
	out := &Table{Name: t.FriendlyName, Type: t.Type}
	if ref := t.TableReference; ref != nil {
		out.ProjectID, out.DatasetID, out.TableID = ref.ProjectId, ref.DatasetId, ref.TableId
	}
	return out
}

func (t *Table) toRaw(project string) *raw.Table {
	if t.ProjectID != "" {
		project = t.ProjectID
	}
	return &raw.Table{
		TableReference: &raw.TableReference{ProjectId: project, DatasetId: t.DatasetID, TableId: t.TableID},
		FriendlyName:   t.Name,
		Description:    t.Description,
		Schema:         schemaToRaw(t.Schema),
	}
}

// Job is a reference to an asynchronous BigQuery job and its last known
// state. Err is set when a finished job failed.
type Job struct {
	ProjectID string
	JobID     string
	Location  string
	// PENDING, RUNNING or DONE
	State string
	Err   error
}

func (j *Job) Done() bool {
	return j.State == "DONE"
}

func jobFromRef(ref *raw.JobReference) *Job {
	if ref == nil {
		return &Job{}
	}
	return &Job{ProjectID: ref.ProjectId, JobID: ref.JobId, Location: ref.Location}
}

func jobFromRaw(j *raw.Job) *Job {
	if j == nil {
		return &Job{}
	}
	out := jobFromRef(j.JobReference)
	if st := j.Status; st != nil {
		out.State = st.State
		if e := st.ErrorResult; e != nil {
			out.Err = apierr.FromReason("bigquery.job", e.Reason, e.Message)
		}
	}
	return out
}

// QueryData is one page of query results. Rows are keyed by column name and
// hold values converted per the schema: INTEGER as int64, FLOAT as float64,
// BOOLEAN as bool, TIMESTAMP as time.Time, BYTES as []byte, RECORD as
// map[string]interface{} and REPEATED columns as []interface{}. Other types
// are kept as strings.
type QueryData struct {
	Rows     []map[string]interface{}
	Schema   []*Field
	Total    int64
	Token    string
	Complete bool
	Job      *Job
}

func queryDataFromRaw(schema *raw.TableSchema, rows []*raw.TableRow, total uint64, token string, complete bool, job *raw.JobReference) (*QueryData, error) {
	qd := &QueryData{
		Schema:   schemaFromRaw(schema),
		Total:    int64(total),
		Token:    token,
		Complete: complete,
		Job:      jobFromRef(job),
	}
	var fields []*raw.TableFieldSchema
	if schema != nil {
		fields = schema.Fields
	}
	for _, row := range rows {
		values, err := convertRow(fields, row.F)
		if err != nil {
			return nil, err
		}
		qd.Rows = append(qd.Rows, values)
	}
	return qd, nil
}

// InsertError lists why the row at Index was rejected by Insert.
type InsertError struct {
	Index  int
	Errors []error
}

func insertErrorsFromRaw(errs []*raw.TableDataInsertAllResponseInsertErrors) []InsertError {
	var out []InsertError
	for _, ie := range errs {
		e := InsertError{Index: int(ie.Index)}
		for _, ep := range ie.Errors {
			e.Errors = append(e.Errors, apierr.FromReason("bigquery.tabledata.insertAll", ep.Reason, ep.Message))
		}
		out = append(out, e)
	}
	return out
}
