// Command rdgctl inspects, migrates and prepares RDG snapshots in a blob
// store.
//
//	rdgctl --store /data inspect graphs/ldbc
//	rdgctl --store /data migrate --write graphs/ldbc
//	rdgctl --store /data view --all graphs/ldbc
//	rdgctl --store /data property --kind edge --name weight graphs/ldbc
//
// Configuration comes from --config, KATANA_ environment variables
// (KATANA_CACHE__VIEW_CAPACITY=32) and global flags, in increasing
// priority.
package main
