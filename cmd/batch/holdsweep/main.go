package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"

	"github.com/ridgeline-stays/booking-engine/internal/config"
	"github.com/ridgeline-stays/booking-engine/internal/service/batch"
	"github.com/ridgeline-stays/booking-engine/internal/utils"
)

const projectName = "booking-engine-holdsweep"

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "batch execution timeout")
	flag.Parse()

	// The task token arrives as the last positional argument. Local runs use
	// a placeholder and skip Step Functions entirely.
	taskToken := "DUMMY_TASK_TOKEN"
	if os.Getenv("ENV") != "LOCAL" {
		taskToken = flag.Arg(len(flag.Args()) - 1)
		if taskToken == "" {
			log.Fatalf("Task token is required")
		}
	}

	cfg, err := config.Load(taskToken)
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}

	if cfg.EnableTracing {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000",
			ServiceVersion: "1.0.0",
		}); err != nil {
			log.Printf("Failed to configure X-Ray: %v", err)
			if configErr := xray.Configure(xray.Config{}); configErr != nil {
				log.Fatalf("Failed to configure default X-Ray settings: %v", configErr)
			}
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
	}

	var sfnClient *sfn.Client
	if os.Getenv("ENV") != "LOCAL" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v\nStack trace:\n%s", err, debug.Stack())
		}
		sfnClient = sfn.NewFromConfig(awsCfg)
	}

	service, err := batch.NewHoldSweepService(cfg, sfnClient)
	if err != nil {
		log.Fatalf("Failed to create service: %v\nStack trace:\n%s", err, debug.Stack())
	}
	defer service.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if cfg.EnableTracing {
		var seg *xray.Segment
		ctx, seg = xray.BeginSegment(ctx, projectName)
		defer seg.Close(nil)

		if err := seg.AddMetadata("task_token", taskToken); err != nil {
			log.Printf("Failed to add task_token metadata: %v", err)
		}
		if err := seg.AddMetadata("timeout", timeout.String()); err != nil {
			log.Printf("Failed to add timeout metadata: %v", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- utils.RunWithTimeout(ctx, *timeout, service.Run)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Printf("Batch process failed: %v\nStack trace:\n%s", err, debug.Stack())

			if os.Getenv("ENV") != "LOCAL" && sfnClient != nil {
				input := &sfn.SendTaskFailureInput{
					TaskToken: aws.String(taskToken),
					Error:     aws.String("Hold sweep failed"),
				}

				if _, err := sfnClient.SendTaskFailure(ctx, input); err != nil {
					log.Printf("Failed to send task failure: %v\nStack trace:\n%s", err, debug.Stack())
				}
			}

			os.Exit(1)
		}
		log.Println("Batch process completed successfully")
	}
}
