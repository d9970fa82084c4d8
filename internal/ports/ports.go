// Package ports declares the external collaborators the core consumes. The
// core never renders UI or touches codecs itself; concrete implementations
// live at the edges and are injected by the composition root.
package ports

import "context"

// Transcoder turns an input file into the slowed artifact. Opaque: the core
// does not know or care how the re-encoding happens. Implementations are
// expected to bound their own duration; the queue imposes no timeout.
type Transcoder interface {
	Process(ctx context.Context, inputRef string, speedRatio float64) (outputRef string, err error)
}

// ArtifactMeta carries display metadata alongside a delivered artifact.
type ArtifactMeta struct {
	Title     string
	Performer string
	FileName  string
}

// MessagingGateway is the boundary to whatever chat transport fronts the
// core. The core calls it at job start and end; message parsing, buttons and
// command routing live entirely on the other side.
type MessagingGateway interface {
	// Notify sends a plain status message to the user.
	Notify(ctx context.Context, userID uint64, message string) error

	// DeliverArtifact sends a processed tune back to the user.
	DeliverArtifact(ctx context.Context, userID uint64, artifactRef string, meta ArtifactMeta) error

	// DownloadInbound fetches submitted content to local storage for
	// processing and returns the local path.
	DownloadInbound(ctx context.Context, sourceRef string) (localRef string, err error)

	// UploadOutbound stores a processed local file and returns the durable
	// artifact reference persisted on the match row.
	UploadOutbound(ctx context.Context, localRef string) (artifactRef string, err error)
}

// ModeratorChannel carries report alerts to a moderator. Resolution is
// asynchronous: the verdict arrives later through the core's ResolveReport.
type ModeratorChannel interface {
	AlertModerator(ctx context.Context, matchID, reporterID uint64) error
}
