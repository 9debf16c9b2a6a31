package providers

import "time"

// shutdownTimeout bounds each handle's graceful Shutdown.
const shutdownTimeout = 30 * time.Second
