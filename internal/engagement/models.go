package engagement

import "errors"

// TargetKind distinguishes what an engagement event points at. Comments are
// resolved to their parent post before counters are touched.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Target is the tagged reference carried by every engagement event.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// DeltaKind names the counter a delta applies to.
type DeltaKind string

const (
	DeltaLike    DeltaKind = "like"
	DeltaComment DeltaKind = "comment"
	DeltaShare   DeltaKind = "share"
)

// Counters is the snapshot returned after every successful mutation and
// broadcast on the firehose.
type Counters struct {
	PostID       string  `json:"post_id"`
	LikeCount    int64   `json:"like_count"`
	CommentCount int64   `json:"comment_count"`
	ShareCount   int64   `json:"share_count"`
	ViewCount    int64   `json:"view_count"`
	Score        float64 `json:"engagement_score"`
}

var (
	ErrTargetNotFound = errors.New("target not found")
	ErrUnknownTarget  = errors.New("unknown target kind")
	ErrUnknownDelta   = errors.New("unknown delta kind")
	ErrBadSign        = errors.New("delta sign must be +1 or -1")
)
