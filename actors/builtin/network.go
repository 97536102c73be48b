package builtin

// The duration of a chain epoch.
// Used for deriving epoch-denominated periods that are more naturally expressed in clock time.
const EpochDurationSeconds = 30
const SecondsInHour = 60 * 60
const SecondsInDay = 24 * SecondsInHour
const EpochsInHour = SecondsInHour / EpochDurationSeconds
const EpochsInDay = 24 * EpochsInHour
const EpochsInYear = 365 * EpochsInDay

// The scale of the token unit. One full token is 10^18 indivisible units.
const TokenPrecision = int64(1_000_000_000_000_000_000)
