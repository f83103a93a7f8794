package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dgrijalva/jwt-go"
	"github.com/getsentry/sentry-go"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/uber-go/tally"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/civitas-labs/dispatch-api/api"
	"github.com/civitas-labs/dispatch-api/external/geoinfo"
	"github.com/civitas-labs/dispatch-api/schema"
	"github.com/civitas-labs/dispatch-api/store"
)

var (
	server       *api.Server
	dispatchCore store.DispatchCore
)

func initLog() {
	logLevel, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(logLevel)
	}

	log.SetOutput(os.Stdout)

	log.SetFormatter(&prefixed.TextFormatter{
		ForceFormatting: true,
		FullTimestamp:   true,
	})
}

func loadConfig(file string) {
	// Config from file
	viper.SetConfigType("yaml")
	if file != "" {
		viper.SetConfigFile(file)
	}

	viper.AddConfigPath("/.config/")
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()
	if err != nil {
		fmt.Println("No config file. Read config from env.")
		viper.AllowEmptyEnv(false)
	}

	// Config from env if possible
	viper.AutomaticEnv()
	viper.SetEnvPrefix("dispatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// openDispatchStore builds the durable Postgres+mongo store, or falls
// back to the process-lifetime in-memory store when no orm connection is
// configured (dev mode).
func openDispatchStore() store.DispatchCore {
	ormConn := viper.GetString("orm.conn")
	if ormConn == "" {
		log.WithField("prefix", "init").Warn("no orm.conn configured, using in-memory store")
		return store.NewMemoryStore()
	}

	ormDB, err := gorm.Open("postgres", ormConn)
	if err != nil {
		log.Panic(err)
	}

	opts := options.Client().ApplyURI(viper.GetString("mongo.conn"))
	opts.SetMaxPoolSize(viper.GetUint64("mongo.pool"))
	mongoClient, err := mongo.NewClient(opts)
	if err != nil {
		log.Panicf("create mongo client with error: %s", err)
	}

	if err := mongoClient.Connect(context.Background()); err != nil {
		log.Panicf("connect mongo database with error: %s", err)
	}

	s := store.NewDispatchStore(ormDB, store.NewMongoStore(mongoClient, viper.GetString("mongo.database")))
	if err := s.Migrate(); err != nil {
		log.Panic(err)
	}

	schema.NewMongoDBIndexer(viper.GetString("mongo.conn"), viper.GetString("mongo.database")).IndexAll()

	return s
}

func main() {
	var configFile string

	initialCtx, cancelInitialization := context.WithCancel(context.Background())

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Server is preparing to shutdown")

		if initialCtx != nil && cancelInitialization != nil {
			log.Info("Cancelling initialization")
			cancelInitialization()
			<-initialCtx.Done()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if server != nil {
			log.Info("Shutdown dispatch api server")
			if err := server.Shutdown(ctx); err != nil {
				log.Error("Server Shutdown:", err)
			}
		}

		if dispatchCore != nil {
			log.Info("Shutting down dispatch store")
			dispatchCore.Close()
		}

		os.Exit(1)
	}()

	flag.StringVar(&configFile, "c", "./config.yaml", "[optional] path of configuration file")
	flag.Parse()

	loadConfig(configFile)

	initLog()

	// Sentry
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              viper.GetString("sentry.dsn"),
		AttachStacktrace: true,
		Environment:      viper.GetString("sentry.environment"),
		Dist:             viper.GetString("sentry.dist"),
	}); err != nil {
		log.Error(err)
	}
	log.WithField("prefix", "init").Info("Initialized sentry")

	// Load JWT private key
	jwtSecretByte, err := ioutil.ReadFile(viper.GetString("jwt.keyfile"))
	if err != nil {
		log.Panic(err)
	}
	jwtPrivateKey, err := jwt.ParseRSAPrivateKeyFromPEMWithPassword(jwtSecretByte, viper.GetString("jwt.password"))
	if err != nil {
		log.Panic(err)
	}
	log.WithField("prefix", "init").Info("Loaded global jwt key")

	dispatchCore = openDispatchStore()
	log.WithField("prefix", "init").Info("Initialized dispatch store")

	// Reverse geocoding client for request address snapshots; requests
	// still dispatch without it
	var geoClient geoinfo.GeoInfo
	if apiKey := viper.GetString("map.key"); apiKey != "" {
		geoClient, err = geoinfo.New(apiKey)
		if err != nil {
			log.Error(err)
			geoClient = nil
		}
	}

	metrics, metricsCloser := tally.NewRootScope(tally.ScopeOptions{
		Prefix: "dispatch",
	}, time.Second)
	defer metricsCloser.Close()

	// Init http server
	server = api.NewServer(
		dispatchCore,
		jwtPrivateKey,
		geoClient,
		metrics)
	log.WithField("prefix", "init").Info("Initialized http server")

	// Remove initial context
	initialCtx = nil
	cancelInitialization = nil

	log.Fatal(server.Run(":" + viper.GetString("server.port")))
}
