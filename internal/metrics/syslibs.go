package metrics

import "sort"

// DefaultSystemLibraryNames are Apple platform frameworks and Swift runtime
// modules. Imports of these are never reported as dependencies.
var DefaultSystemLibraryNames = []string{
	"ARKit", "AVFoundation", "AVKit", "Accelerate", "Accessibility", "Accounts",
	"AdSupport", "AppKit", "AppTrackingTransparency", "AssetsLibrary", "AudioToolbox",
	"AuthenticationServices", "BackgroundTasks", "CFNetwork", "CallKit", "CarPlay",
	"CloudKit", "Combine", "Contacts", "ContactsUI", "CoreAudio", "CoreBluetooth",
	"CoreData", "CoreFoundation", "CoreGraphics", "CoreHaptics", "CoreImage",
	"CoreLocation", "CoreML", "CoreMedia", "CoreMotion", "CoreNFC", "CoreServices",
	"CoreSpotlight", "CoreTelephony", "CoreText", "CoreVideo", "CryptoKit",
	"Darwin", "Dispatch", "EventKit", "EventKitUI", "ExternalAccessory",
	"FileProvider", "Foundation", "GLKit", "GameController", "GameKit",
	"GameplayKit", "HealthKit", "HomeKit", "ImageIO", "Intents", "IntentsUI",
	"JavaScriptCore", "LocalAuthentication", "MapKit", "MediaPlayer", "MessageUI",
	"Messages", "Metal", "MetalKit", "MobileCoreServices", "MultipeerConnectivity",
	"NaturalLanguage", "Network", "NetworkExtension", "NotificationCenter",
	"ObjectiveC", "OSLog", "Observation", "PDFKit", "PassKit", "PhotosUI", "Photos",
	"PushKit", "QuartzCore", "QuickLook", "RealityKit", "ReplayKit", "SafariServices",
	"SceneKit", "Security", "Social", "Speech", "SpriteKit", "StoreKit", "Swift",
	"SwiftData", "SwiftUI", "SystemConfiguration", "UIKit", "UniformTypeIdentifiers",
	"UserNotifications", "UserNotificationsUI", "VideoToolbox", "Vision",
	"VisionKit", "WatchConnectivity", "WatchKit", "WebKit", "WidgetKit", "XCTest",
	"os",
}

// SystemLibraries is the allowlist of module names that are part of the
// platform rather than the analyzed project.
type SystemLibraries map[string]struct{}

// NewSystemLibraries builds an allowlist from names.
func NewSystemLibraries(names ...string) SystemLibraries {
	s := make(SystemLibraries, len(names))
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// DefaultSystemLibraries returns a fresh allowlist of DefaultSystemLibraryNames.
func DefaultSystemLibraries() SystemLibraries {
	return NewSystemLibraries(DefaultSystemLibraryNames...)
}

// Contains reports whether name is a system library. A nil allowlist
// contains nothing.
func (s SystemLibraries) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// With returns a copy of s extended with names.
func (s SystemLibraries) With(names ...string) SystemLibraries {
	out := make(SystemLibraries, len(s)+len(names))
	for n := range s {
		out[n] = struct{}{}
	}
	for _, n := range names {
		if n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

// Names returns the allowlist sorted.
func (s SystemLibraries) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
