package models

// Archetype is the diagram shape the planner picks for a section.
type Archetype string

const (
	ArchetypeFlowchart  Archetype = "flowchart"
	ArchetypeMindmap    Archetype = "mindmap"
	ArchetypeTimeline   Archetype = "timeline"
	ArchetypeComparison Archetype = "comparison"
)

// KnownArchetype reports whether a is one of the supported diagram archetypes.
func KnownArchetype(a Archetype) bool {
	switch a {
	case ArchetypeFlowchart, ArchetypeMindmap, ArchetypeTimeline, ArchetypeComparison:
		return true
	}
	return false
}

// SectionFlags carry content-type hints from the extractor.
type SectionFlags struct {
	HasCode   bool `json:"has_code"`
	HasTable  bool `json:"has_table"`
	HasFigure bool `json:"has_figure"`
}

// Section is one extracted unit of document text. Produced by the external
// extractor; read-only input to the pipeline.
type Section struct {
	ID            string       `json:"id"`
	Heading       string       `json:"heading"`
	Text          string       `json:"text"`
	WordCount     int          `json:"word_count"`
	Flags         SectionFlags `json:"flags"`
	FigureCaption string       `json:"figure_caption,omitempty"`
}

// Document is the unit of work for one analysis run.
type Document struct {
	Title    string    `json:"title"`
	URL      string    `json:"url,omitempty"`
	Sections []Section `json:"sections"`
}

// WordCount sums the word counts of all sections.
func (d Document) WordCount() int {
	total := 0
	for _, s := range d.Sections {
		total += s.WordCount
	}
	return total
}

// PlanItem is the planner's decision about a single section. Created once;
// never mutated afterwards.
type PlanItem struct {
	SectionID string    `json:"section_id"`
	Heading   string    `json:"heading"`
	Archetype Archetype `json:"archetype"`
	Priority  int       `json:"priority"` // 1 or 2
	Admitted  bool      `json:"admitted"`
	Rationale string    `json:"rationale,omitempty"`
}

// Plan is the planner's verdict for a whole document.
type Plan struct {
	Admitted bool       `json:"admitted"`
	Reason   string     `json:"reason,omitempty"`
	Items    []PlanItem `json:"items,omitempty"`
}

// Segment is a generation-sized sub-unit of a section's text. Its Text is
// always a verified substring or word-window of the source section.
type Segment struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Archetype Archetype `json:"archetype"`
	Priority  int       `json:"priority"`
	WordCount int       `json:"word_count"`
}

// Evaluation is the evaluator's verdict on one text unit.
type Evaluation struct {
	Worthy     bool    `json:"worthy"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
	Potential  string  `json:"potential"` // high|medium|low|none
}

// RequestStatus is the lifecycle of one generation-service request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestProcessing RequestStatus = "processing"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
)

// GenerationRequest tracks one submitted generation job. Owned by the
// generation client; the scheduler only observes it.
type GenerationRequest struct {
	RequestID    string        `json:"request_id"`
	Status       RequestStatus `json:"status"`
	ArtifactRefs []string      `json:"artifact_refs,omitempty"`
}

// Artifact is the sanitized diagram content produced for a segment or section.
type Artifact struct {
	Content         string `json:"content"`
	SourceSegmentID string `json:"source_segment_id,omitempty"`
	SourceSectionID string `json:"source_section_id"`
}

// SectionState is the scheduler's per-section lifecycle.
type SectionState string

const (
	SectionQueued     SectionState = "queued"
	SectionEvaluating SectionState = "evaluating"
	SectionSegmenting SectionState = "segmenting"
	SectionGenerating SectionState = "generating"
	SectionDone       SectionState = "done"
	SectionRejected   SectionState = "rejected"
	SectionErrored    SectionState = "errored"
)
