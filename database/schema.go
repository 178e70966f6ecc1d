package database

import "fmt"

// Table names.
const (
	TableCarriers   = "carriers"
	TableCarriersDM = "carriers_dm"
	TableSimInfo    = "siminfo"
)

// schemaMigrationsTable records every upgrade step applied to this file.
const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    description TEXT
);
`

// carrierColumnsDDL is shared by the carriers and carriers_dm tables.
const carrierColumnsDDL = `
    _id INTEGER PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    numeric TEXT NOT NULL DEFAULT '',
    mcc TEXT NOT NULL DEFAULT '',
    mnc TEXT NOT NULL DEFAULT '',
    apn TEXT NOT NULL DEFAULT '',
    user TEXT NOT NULL DEFAULT '',
    server TEXT NOT NULL DEFAULT '',
    password TEXT NOT NULL DEFAULT '',
    proxy TEXT NOT NULL DEFAULT '',
    port TEXT NOT NULL DEFAULT '',
    mmsproxy TEXT NOT NULL DEFAULT '',
    mmsport TEXT NOT NULL DEFAULT '',
    mmsc TEXT NOT NULL DEFAULT '',
    authtype INTEGER NOT NULL DEFAULT -1,
    type TEXT NOT NULL DEFAULT '',
    current INTEGER,
    sourcetype INTEGER NOT NULL DEFAULT 0,
    csdnum TEXT NOT NULL DEFAULT '',
    protocol TEXT NOT NULL DEFAULT 'IP',
    roaming_protocol TEXT NOT NULL DEFAULT 'IP',
    carrier_enabled BOOLEAN NOT NULL DEFAULT 1,
    bearer INTEGER NOT NULL DEFAULT 0,
    spn TEXT NOT NULL DEFAULT '',
    imsi TEXT NOT NULL DEFAULT '',
    pnn TEXT NOT NULL DEFAULT '',
    ppp TEXT NOT NULL DEFAULT '',
    mvno_type TEXT NOT NULL DEFAULT '',
    mvno_match_data TEXT NOT NULL DEFAULT '',
    sub_id INTEGER NOT NULL DEFAULT -1,
    profile_id INTEGER NOT NULL DEFAULT 0,
    modem_cognitive BOOLEAN NOT NULL DEFAULT 0,
    max_conns INTEGER NOT NULL DEFAULT 0,
    wait_time INTEGER NOT NULL DEFAULT 0,
    max_conns_time INTEGER NOT NULL DEFAULT 0,
    mtu INTEGER NOT NULL DEFAULT 0`

// omacpColumnsDDL is appended when OMA-CP provisioning columns are enabled.
const omacpColumnsDDL = `,
    omacpid TEXT NOT NULL DEFAULT '',
    napid TEXT NOT NULL DEFAULT '',
    proxyid TEXT NOT NULL DEFAULT ''`

// simInfoColumnsDDL is the current subscription table layout.
const simInfoColumnsDDL = `
    _id INTEGER PRIMARY KEY AUTOINCREMENT,
    icc_id TEXT NOT NULL,
    sim_id INTEGER DEFAULT -1,
    display_name TEXT,
    carrier_name TEXT,
    name_source INTEGER DEFAULT 0,
    color INTEGER DEFAULT 0,
    number TEXT,
    display_number_format INTEGER NOT NULL DEFAULT 1,
    data_roaming INTEGER DEFAULT 0,
    mcc INTEGER DEFAULT 0,
    mnc INTEGER DEFAULT 0`

// simInfoColumns lists the subscription columns carried across a rebuild.
var simInfoColumns = []string{
	"_id", "icc_id", "sim_id", "display_name", "carrier_name", "name_source",
	"color", "number", "display_number_format", "data_roaming", "mcc", "mnc",
}

func createCarriersTable(table string, omacp bool) string {
	cols := carrierColumnsDDL
	if omacp {
		cols += omacpColumnsDDL
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n);", table, cols)
}

func createSimInfoTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s\n);", table, simInfoColumnsDDL)
}

const carriersNumericIndex = `CREATE INDEX IF NOT EXISTS idx_carriers_numeric ON carriers(numeric);`
