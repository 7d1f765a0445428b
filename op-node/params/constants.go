package params

const (
	// ChannelTimeoutGranite is a post-Granite constant: Number of L1 blocks between when a channel can be opened and when it must be closed by.
	ChannelTimeoutGranite uint64 = 50
	// SuperRootCadenceSeconds is the fixed interval, in seconds, between consecutive agreed super roots.
	SuperRootCadenceSeconds uint64 = 1
)
