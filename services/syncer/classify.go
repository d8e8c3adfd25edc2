package syncer

import "time"

// Classify maps a first-seen timestamp to a retention verdict. Age is whole
// days elapsed since first observation; an asset strictly older than the
// threshold is archived, one exactly at the threshold is still current.
// For a fixed firstSeen the verdict is monotonic in now: advancing the clock
// can archive an asset but never un-archive it.
func Classify(firstSeen, now time.Time, thresholdDays int) (Bucket, int) {
	ageDays := int(now.Sub(firstSeen).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays > thresholdDays {
		return BucketArchived, ageDays
	}
	return BucketCurrent, ageDays
}
