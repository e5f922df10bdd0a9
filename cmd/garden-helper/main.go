package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/gocql/gocql"
	"github.com/sirupsen/logrus"

	garden "github.com/DuTi2201/gardenR4-sub001"
	"github.com/DuTi2201/gardenR4-sub001/app"
	"github.com/DuTi2201/gardenR4-sub001/client"
)

type HelperCommand struct {
	Command    func() error
	RequireApp bool
}

var (
	a   *app.App
	log = logrus.New()

	remote_host = flag.String("remote-host", "http://localhost:4010", "Address of the garden-mqtt http api")
	api_key     = flag.String("api-key", "", "Api key sent as bearer token")
	garden_id   = flag.Uint64("garden", 0, "Garden id")
	serial_arg  = flag.String("serial", "", "Device serial")
	channel_arg = flag.String("channel", "", "Actuator channel")
	action_arg  = flag.Bool("action", false, "Actuator state to request")
	limit_arg   = flag.Int("limit", 20, "Maximum number of records to list")
	replication = flag.Int("replication", 1, "Replication factor of a new keyspace")

	command_arg string
	commands    = map[string]HelperCommand{
		"send-command":                  {sendCommand, false},
		"take-photo":                    {takePhoto, false},
		"stream-on":                     {streamOn, false},
		"stream-off":                    {streamOff, false},
		"list-commands":                 {listCommands, false},
		"device-online":                 {deviceOnline, false},
		"cassandra-create-keyspace":     {cassandraCreateKeyspace, false},
		"cassandra-create-sample-table": {cassandraCreateSampleTable, true},
	}
)

func main() {
	flag.StringVar(&command_arg, "cmd", "", "Command to fire")
	flag.Parse()

	cmd, ok := commands[command_arg]
	if !ok {
		log.Printf("Unknown command: %s\n", command_arg)
		printCommands()
		os.Exit(1)
	}

	if cmd.RequireApp {
		a = app.New()
		log = a.Logger
		defer a.Close()
	}

	if err := cmd.Command(); err != nil {
		log.WithField("error", err).Fatalf("Error running %s", command_arg)
	}
}

func printCommands() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Printf("Available commands:")
	for _, name := range names {
		log.Println(name)
	}
}

func api() *client.Client {
	return client.New(*remote_host, *api_key, log)
}

func printJson(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}

func requireGarden() error {
	if *garden_id == 0 {
		return fmt.Errorf("missing -garden")
	}
	return nil
}

func sendCommand() error {
	if err := requireGarden(); err != nil {
		return err
	}
	if *channel_arg == "" {
		return fmt.Errorf("missing -channel")
	}

	record, err := api().SendCommand(*garden_id, *channel_arg, *action_arg)
	if err != nil {
		return err
	}
	return printJson(record)
}

func takePhoto() error {
	if err := requireGarden(); err != nil {
		return err
	}

	record, err := api().TakePhoto(*garden_id)
	if err != nil {
		return err
	}
	return printJson(record)
}

func setStream(enable bool) error {
	if err := requireGarden(); err != nil {
		return err
	}

	record, err := api().SetStream(*garden_id, enable)
	if err != nil {
		return err
	}
	return printJson(record)
}

func streamOn() error {
	return setStream(true)
}

func streamOff() error {
	return setStream(false)
}

func listCommands() error {
	if err := requireGarden(); err != nil {
		return err
	}

	records, err := api().Commands(*garden_id, *channel_arg, *limit_arg)
	if err != nil {
		return err
	}
	return printJson(records)
}

func deviceOnline() error {
	if *serial_arg == "" {
		return fmt.Errorf("missing -serial")
	}

	snapshot, err := api().Online(*serial_arg)
	if err != nil {
		return err
	}
	return printJson(snapshot)
}

func cassandraCreateKeyspace() error {
	env := os.Getenv("GARDEN_ENV")
	if env == "" {
		env = "dev"
	}

	log.Printf("Running in environment: %s\n", env)

	config, err := app.LoadConfig(env)
	if err != nil {
		return err
	}
	if config.Cassandra == nil {
		return fmt.Errorf("no Cassandra section in config/%s.yaml", env)
	}

	keyspace := config.Cassandra.Keyspace
	if keyspace == "" {
		keyspace = "garden"
	}

	cluster := gocql.NewCluster(config.Cassandra.Nodes...)
	session, err := cluster.CreateSession()
	if err != nil {
		return err
	}
	defer session.Close()

	return session.Query(fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
    WITH replication = {
        'class' : 'SimpleStrategy',
        'replication_factor' : %d
    }`, keyspace, *replication)).Exec()
}

func cassandraCreateSampleTable() error {
	if a.Cassandra == nil {
		return fmt.Errorf("cassandra not configured")
	}

	for _, statement := range garden.CassandraStructure {
		query := a.Cassandra.Query(statement)

		log.Printf("Executing %s\n", query.String())
		if err := query.Exec(); err != nil {
			return err
		}
	}

	return nil
}
