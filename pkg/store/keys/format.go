package keys

const (
	// notation dictionary for key formats:
	// log  = append-only entry
	// meta = bookkeeping owned by the backend
	// <kind> is the entry kind (message, receipt, file_bytes)
	// <pos>  is the zero padded log position
	// All keys are lowercase; segments are separated by ":"

	EntryKey    = "log:%s:%s" // log:<kind>:<pos>
	EntryPrefix = "log:%s:"   // log:<kind>:

	MetaPositionKey = "meta:position"
	MetaVersionKey  = "meta:version"

	// padding width (fixed for lexicographic ordering)
	PositionPadWidth = 20 // e.g. %020d

	// bumped when the on-disk key layout changes
	LayoutVersion = "1"
)
